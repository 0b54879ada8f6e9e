package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	startLayout = "2006-01-02T15:04"
	clockLayout = "15:04"
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the timed occurrences ready for the day view.
type ExpandResult struct {
	Events []model.CalendarEvent

	// AllDay counts all-day occurrences; they have no place in the timed
	// grid and are left out of Events.
	AllDay int

	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into concrete calendar events within the
// configured range. It handles single events, RRULE recurrence, EXDATE
// exclusions and RECURRENCE-ID overrides. Output is ordered by start, then
// ID, so repeated refreshes of the same feed yield the same snapshot.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	var occurrences []occurrence
	for _, uid := range uids {
		for _, ev := range bases[uid] {
			occ, hitCap := expandEvent(ev, overrides[uid], cfg)
			occurrences = append(occurrences, occ...)
			if hitCap {
				result.TruncatedEvents = append(result.TruncatedEvents, uid)
				appLog.Warn("expand: truncated occurrences", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	result.Events = make([]model.CalendarEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.event.AllDay {
			result.AllDay++
			continue
		}
		result.Events = append(result.Events, occ.calendarEvent(cfg.DisplayLocation))
	}
	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})

	return result, nil
}

// occurrence is one concrete instance of a (possibly overridden) event.
type occurrence struct {
	event      ParsedEvent
	start, end time.Time
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	if ev.RawRRule == "" {
		if !intersects(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []occurrence{applyOverride(ev, overrides, ev.Start, ev.End)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the duration so instances that started
	// before the range but are still running are kept.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, applyOverride(ev, overrides, s, s.Add(dur)))
	}
	return out, hitCap
}

// applyOverride swaps in the override whose RECURRENCE-ID matches start.
func applyOverride(ev ParsedEvent, overrides []ParsedEvent, start, end time.Time) occurrence {
	for _, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			return occurrence{event: ov, start: ov.Start, end: ov.End}
		}
	}
	return occurrence{event: ev, start: start, end: end}
}

// calendarEvent renders the occurrence in the display zone. The end is a
// clock on the start's date; an occurrence running past midnight ends at
// "24:00", and one with no duration has no end at all.
func (o occurrence) calendarEvent(loc *time.Location) model.CalendarEvent {
	start := o.start.In(loc)
	end := o.end.In(loc)

	ce := model.CalendarEvent{
		ID:        o.event.UID + "@" + start.Format(time.RFC3339),
		Title:     o.event.Summary,
		Start:     start.Format(startLayout),
		Attendees: o.event.Attendees,
		Color:     o.event.Source.Color,
		SourceID:  o.event.Source.ID,
	}

	switch {
	case !end.After(start):
	case sameDate(start, end):
		ce.End = end.Format(clockLayout)
	default:
		ce.End = "24:00"
	}
	return ce
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// intersects reports whether [aStart, aEnd) and [bStart, bEnd) share time.
// Zero-length events count when they start inside the range.
func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
