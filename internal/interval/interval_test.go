package interval

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2021, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func TestOverlapsAgainstExisting(t *testing.T) {
	existingStart, existingEnd := at(14, 0), at(15, 0)

	cases := []struct {
		name     string
		newStart time.Time
		newEnd   time.Time
		overlaps bool
	}{
		{"new matches existing", at(14, 0), at(15, 0), true},
		{"new contains existing", at(13, 45), at(15, 15), true},
		{"existing contains new", at(14, 15), at(14, 45), true},
		{"new starts when existing ends", at(15, 0), at(16, 0), false},
		{"new ends when existing starts", at(13, 0), at(14, 0), false},
		{"new overlaps existing start", at(13, 30), at(14, 30), true},
		{"new overlaps existing end", at(14, 30), at(15, 30), true},
		{"existing contains new with matching start", at(14, 0), at(14, 30), true},
		{"existing contains new with matching end", at(14, 30), at(15, 0), true},
		{"new contains existing with matching start", at(14, 0), at(15, 30), true},
		{"new contains existing with matching end", at(13, 30), at(15, 0), true},
		{"new is before existing", at(12, 0), at(13, 0), false},
		{"new is after existing", at(16, 0), at(17, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlaps, Overlaps(existingStart, existingEnd, tc.newStart, tc.newEnd))

			existing := Interval{Start: existingStart, End: existingEnd}
			candidate := Interval{Start: tc.newStart, End: tc.newEnd}
			assert.Equal(t, tc.overlaps, existing.Overlaps(candidate))

			got, err := Check(existing, candidate)
			require.NoError(t, err)
			assert.Equal(t, tc.overlaps, got)
		})
	}
}

func TestOverlapsIgnoresLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	existingStart, existingEnd := at(14, 0), at(15, 0)

	// 15:00 UTC is 00:00 KST the next day.
	newStart := at(15, 0).In(seoul)
	newEnd := at(16, 0).In(seoul)
	assert.False(t, Overlaps(existingStart, existingEnd, newStart, newEnd))
	assert.True(t, Overlaps(existingStart, existingEnd, newStart.Add(-time.Minute), newEnd))
}

func randomInterval(r *rand.Rand, base time.Time) Interval {
	start := base.Add(time.Duration(r.Intn(600)) * time.Minute)
	end := start.Add(time.Duration(r.Intn(120)) * time.Minute)
	return Interval{Start: start, End: end}
}

func TestOverlapsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	base := at(0, 0)

	for i := 0; i < 2000; i++ {
		x := randomInterval(r, base)
		y := randomInterval(r, base)
		a, b, c, d := x.Start, x.End, y.Start, y.End

		require.Equal(t, Overlaps(a, b, c, d), Overlaps(c, d, a, b), "symmetry %s %s", x, y)

		if a.Before(b) {
			require.True(t, Overlaps(a, b, a, b), "reflexivity %s", x)
		}

		e := b.Add(time.Duration(r.Intn(60)) * time.Minute)
		require.False(t, Overlaps(a, b, b, e), "touching %s then %s", x, Interval{Start: b, End: e})

		if !c.Before(a) && !b.Before(d) && c.Before(d) {
			require.True(t, Overlaps(a, b, c, d), "containment %s %s", x, y)
		}

		if !a.Before(d) || !c.Before(b) {
			require.False(t, Overlaps(a, b, c, d), "disjoint %s %s", x, y)
		}
	}
}

func TestCheckRejectsInvertedIntervals(t *testing.T) {
	good := Interval{Start: at(14, 0), End: at(15, 0)}
	inverted := Interval{Start: at(15, 0), End: at(14, 0)}

	_, err := Check(inverted, good)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInterval))
	assert.Contains(t, err.Error(), "existing")

	_, err = Check(good, inverted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInterval))
	assert.Contains(t, err.Error(), "new")

	_, err = New(at(15, 0), at(14, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestCheckEmptyIntervalsNeverOverlap(t *testing.T) {
	existing := Interval{Start: at(14, 0), End: at(15, 0)}
	point := Interval{Start: at(14, 30), End: at(14, 30)}

	got, err := Check(existing, point)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Check(point, point)
	require.NoError(t, err)
	assert.False(t, got)

	assert.True(t, point.Empty())
	assert.Equal(t, time.Duration(0), point.Duration())
	assert.Equal(t, time.Hour, existing.Duration())
}

func TestNewAcceptsValidIntervals(t *testing.T) {
	iv, err := New(at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, "[2021-01-01T09:00:00Z, 2021-01-01T10:00:00Z)", iv.String())

	_, err = New(at(9, 0), at(9, 0))
	assert.NoError(t, err)
}
