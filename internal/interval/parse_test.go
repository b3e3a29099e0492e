package interval

import (
	"testing"
	"time"

	"4d63.com/tz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstantRFC3339KeepsOffset(t *testing.T) {
	got, err := ParseInstant("2021-01-01T14:00:00+09:00", "", time.UTC)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2021, 1, 1, 5, 0, 0, 0, time.UTC)))
}

func TestParseInstantUsesLocation(t *testing.T) {
	seoul, err := tz.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	got, err := ParseInstant("2021-01-01T14:00", "", seoul)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2021, 1, 1, 5, 0, 0, 0, time.UTC)))

	got, err = ParseInstant(" 01/02/2021 09:30 ", "01/02/2006 15:04", nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2021, 1, 2, 9, 30, 0, 0, time.UTC)))
}

func TestParseInstantErrors(t *testing.T) {
	_, err := ParseInstant("", "", nil)
	assert.Error(t, err)

	_, err = ParseInstant("tomorrow", "", nil)
	assert.Error(t, err)
}

func TestParseIntervalNormalizesBothEnds(t *testing.T) {
	iv, err := ParseInterval("2021-01-01T14:00", "2021-01-01T15:00:00Z", "", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv.Duration())

	_, err = ParseInterval("2021-01-01T14:00", "nope", "", time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end")
}
