package ics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ErrNoOccurrence is returned when no instance of an event covers the
// requested instant.
var ErrNoOccurrence = errors.New("no occurrence")

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to.
	// If nil, UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd).
	// An occurrence is kept when it overlaps the window; one that only touches
	// a window edge is not.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion per UID. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the list of occurrences plus the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands events into concrete occurrences overlapping the
// configured window. It handles single events, RRULE recurrences, EXDATE
// removal and RECURRENCE-ID overrides. Results are sorted by start.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, fmt.Errorf("expand: %w", interval.Interval{Start: cfg.RangeStart, End: cfg.RangeEnd}.Validate())
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	occurrences := make([]model.Occurrence, 0)
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			occurrences = append(occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	result.Occurrences = occurrences
	return result, nil
}

// OccurrenceAt returns the occurrence of uid in progress at instant at, i.e.
// the one whose [Start, End) contains at. When several match, the earliest
// start wins.
func OccurrenceAt(events []ParsedEvent, uid string, at time.Time, loc *time.Location) (model.Occurrence, error) {
	matching := make([]ParsedEvent, 0)
	for _, ev := range events {
		if ev.UID == uid {
			matching = append(matching, ev)
		}
	}
	if len(matching) == 0 {
		return model.Occurrence{}, fmt.Errorf("%w: uid %q not found", ErrNoOccurrence, uid)
	}

	res, err := ExpandOccurrences(matching, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      at,
		RangeEnd:        at.Add(time.Nanosecond),
	})
	if err != nil {
		return model.Occurrence{}, err
	}
	if len(res.Occurrences) == 0 {
		return model.Occurrence{}, fmt.Errorf("%w: uid %q at %s", ErrNoOccurrence, uid, at.Format(time.RFC3339))
	}
	return res.Occurrences[0], nil
}

// FetchOccurrence loads src through f, parses it, and returns the occurrence
// of uid in progress at instant at.
func FetchOccurrence(ctx context.Context, f *Fetcher, src Source, uid string, at time.Time, loc *time.Location) (model.Occurrence, error) {
	res, err := f.Fetch(ctx, src)
	if err != nil {
		return model.Occurrence{}, fmt.Errorf("load calendar: %w", err)
	}
	events, err := ParseICS(res.Source, res.Body)
	if err != nil {
		return model.Occurrence{}, fmt.Errorf("parse calendar: %w", err)
	}
	occ, err := OccurrenceAt(events, uid, at, loc)
	if err != nil {
		return model.Occurrence{}, err
	}
	appLog.Debug("existing interval from calendar",
		"id", src.ID,
		"uid", occ.UID,
		"summary", occ.Summary,
		"start", occ.Start.Format(time.RFC3339),
		"end", occ.End.Format(time.RFC3339),
		"from_cache", res.FromCache,
	)
	return occ, nil
}

// inWindow applies the overlap predicate against the window. Zero-length
// events count when their instant falls inside it.
func inWindow(start, end time.Time, cfg ExpandConfig) bool {
	if !start.Before(end) {
		return !start.Before(cfg.RangeStart) && start.Before(cfg.RangeEnd)
	}
	return interval.Overlaps(cfg.RangeStart, cfg.RangeEnd, start, end)
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !inWindow(ev.Start, ev.End, cfg) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	if ev.AllDay && dur <= 0 {
		dur = 24 * time.Hour
	}

	// Look back by one duration so instances already running at RangeStart
	// are found; inWindow drops the ones that merely touch it.
	loc := ev.Start.Location()
	rangeStart := cfg.RangeStart.Add(-dur).In(loc)
	rangeEnd := cfg.RangeEnd.In(loc)
	starts := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	add := func(baseEv ParsedEvent, start, end time.Time) bool {
		if !inWindow(start, end, cfg) {
			return true
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			return false
		}
		out = append(out, makeOccurrence(baseEv, start, end, cfg.DisplayLocation))
		return true
	}

	seen := make(map[int64]bool, len(starts))
	for _, occStart := range starts {
		seen[occStart.UnixNano()] = true
		start, end := occStart, occStart.Add(dur)
		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end, baseEv = o.Start, o.End, o
		}
		if !add(baseEv, start, end) {
			return out, hitCap
		}
	}

	// Overrides moved into the window from an original slot outside it.
	// The RECURRENCE-ID must still be a live instance of the set, so EXDATE
	// applies to them as well.
	for _, o := range overrides {
		if o.Recurrence == nil || seen[o.Recurrence.UnixNano()] {
			continue
		}
		rid := o.Recurrence.In(loc)
		if len(set.Between(rid, rid, true)) == 0 {
			continue
		}
		if !add(o, o.Start, o.End) {
			break
		}
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the same
// instant as start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}
