package model

import (
	"time"

	"slotcal/internal/interval"
)

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion and timezone normalization.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool

	// Start / End are in the display timezone.
	Start time.Time
	End   time.Time
}

// Interval returns the occurrence as a half-open [Start, End) range.
func (o Occurrence) Interval() interval.Interval {
	return interval.Interval{Start: o.Start, End: o.End}
}
