package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotcal/internal/interval"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCheckScenarios(t *testing.T) {
	cases := []struct {
		name   string
		ns, ne string
		want   string
	}{
		{"identical", "2021-01-01T14:00", "2021-01-01T15:00", "true"},
		{"new contains existing", "2021-01-01T13:45", "2021-01-01T15:15", "true"},
		{"existing contains new", "2021-01-01T14:15", "2021-01-01T14:45", "true"},
		{"touches at end", "2021-01-01T15:00", "2021-01-01T16:00", "false"},
		{"touches at start", "2021-01-01T13:00", "2021-01-01T14:00", "false"},
		{"disjoint after", "2021-01-01T16:00", "2021-01-01T17:00", "false"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, "check",
				"--existing-start", "2021-01-01T14:00", "--existing-end", "2021-01-01T15:00",
				"--new-start", tc.ns, "--new-end", tc.ne)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestCheckTimezoneFlag(t *testing.T) {
	// 14:00 KST is 05:00 UTC; the new interval starts exactly there.
	out, err := execute(t, "check", "--timezone", "Asia/Seoul",
		"--existing-start", "2021-01-01T13:00", "--existing-end", "2021-01-01T14:00",
		"--new-start", "2021-01-01T05:00:00Z", "--new-end", "2021-01-01T06:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestCheckRejectsInvertedInterval(t *testing.T) {
	_, err := execute(t, "check",
		"--existing-start", "2021-01-01T15:00", "--existing-end", "2021-01-01T14:00",
		"--new-start", "2021-01-01T14:00", "--new-end", "2021-01-01T15:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestCheckLenientConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strict: false\n"), 0o600))

	out, err := execute(t, "check", "--config", path,
		"--existing-start", "2021-01-01T15:00", "--existing-end", "2021-01-01T14:00",
		"--new-start", "2021-01-01T14:00", "--new-end", "2021-01-01T16:00")
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestCheckMissingExisting(t *testing.T) {
	_, err := execute(t, "check", "--new-start", "2021-01-01T14:00", "--new-end", "2021-01-01T15:00")
	assert.Error(t, err)

	_, err = execute(t, "check", "--existing-start", "2021-01-01T14:00")
	assert.Error(t, err, "new-start and new-end are required")
}

func TestCheckFromCalendar(t *testing.T) {
	calendar := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//slotcal//test//EN",
		"BEGIN:VEVENT",
		"UID:standup",
		"DTSTAMP:20210101T000000Z",
		"DTSTART:20210104T140000Z",
		"DTEND:20210104T150000Z",
		"RRULE:FREQ=DAILY;COUNT=5",
		"SUMMARY:Standup",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	dir := t.TempDir()
	path := filepath.Join(dir, "team.ics")
	require.NoError(t, os.WriteFile(path, []byte(calendar), 0o600))

	args := []string{"check", "--ics", path, "--uid", "standup", "--at", "2021-01-06T14:30"}

	out, err := execute(t, append(args, "--new-start", "2021-01-06T14:45", "--new-end", "2021-01-06T16:00")...)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = execute(t, append(args, "--new-start", "2021-01-06T15:00", "--new-end", "2021-01-06T16:00")...)
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	_, err = execute(t, "check", "--ics", path, "--uid", "standup", "--at", "2021-01-06T16:30",
		"--new-start", "2021-01-06T15:00", "--new-end", "2021-01-06T16:00")
	assert.Error(t, err)
}
