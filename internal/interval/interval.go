package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned when an interval ends before it starts.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is a half-open time range [Start, End).
//
// Start is expected to be at or before End. Use New or Validate at the
// boundary when input is not trusted.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an Interval and rejects start > end.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate reports ErrInvalidInterval when End is before Start.
func (iv Interval) Validate() error {
	if iv.End.Before(iv.Start) {
		return fmt.Errorf("%w: end %s is before start %s",
			ErrInvalidInterval, iv.End.Format(time.RFC3339Nano), iv.Start.Format(time.RFC3339Nano))
	}
	return nil
}

// Empty reports whether the interval contains no instant.
func (iv Interval) Empty() bool {
	return !iv.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	if iv.Empty() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

func (iv Interval) String() string {
	return "[" + iv.Start.Format(time.RFC3339) + ", " + iv.End.Format(time.RFC3339) + ")"
}

// Overlaps reports whether the half-open intervals
// [existingStart, existingEnd) and [newStart, newEnd) share an instant.
// Touching intervals (one ends exactly where the other starts) do not overlap.
//
// No validation is performed; see Check for the guarded form.
func Overlaps(existingStart, existingEnd, newStart, newEnd time.Time) bool {
	return newStart.Before(existingEnd) && existingStart.Before(newEnd)
}

// Overlaps is the method form of the package-level Overlaps. It is symmetric.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv.Start, iv.End, other.Start, other.End)
}

// Check validates both intervals and then applies the overlap predicate.
//
// Inverted intervals yield an error wrapping ErrInvalidInterval. A
// zero-duration interval holds no instant and never overlaps anything.
func Check(existing, candidate Interval) (bool, error) {
	if err := existing.Validate(); err != nil {
		return false, fmt.Errorf("existing: %w", err)
	}
	if err := candidate.Validate(); err != nil {
		return false, fmt.Errorf("new: %w", err)
	}
	if existing.Empty() || candidate.Empty() {
		return false, nil
	}
	return existing.Overlaps(candidate), nil
}
