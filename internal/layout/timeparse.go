package layout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"famcal/internal/model"
)

const dateLayout = "2006-01-02"

// clockLayouts are tried in order. Zone offsets are accepted but ignored:
// all events are assumed to be in the display timezone already.
var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"15:04:05.999999999",
	"15:04Z07:00",
	"15:04:05Z07:00",
	"15:04:05.999999999Z07:00",
}

// civilDate is a calendar date without a clock or location.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{year: y, month: m, day: d}
}

func (d civilDate) before(o civilDate) bool {
	if d.year != o.year {
		return d.year < o.year
	}
	if d.month != o.month {
		return d.month < o.month
	}
	return d.day < o.day
}

func (d civilDate) weekday() time.Weekday {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC).Weekday()
}

// span is an event resolved to minutes since midnight on its date.
// The interval is half-open: [start, end).
type span struct {
	index int // position in the caller's slice
	date  civilDate
	start int
	end   int
}

// splitDateTime separates "2006-01-02T15:04" (or a space separator) into
// its date and clock parts. The clock part may be empty.
func splitDateTime(v string) (civilDate, string, error) {
	v = strings.TrimSpace(v)
	if len(v) < len(dateLayout) {
		return civilDate{}, "", fmt.Errorf("invalid date-time %q", v)
	}
	d, err := time.Parse(dateLayout, v[:len(dateLayout)])
	if err != nil {
		return civilDate{}, "", err
	}
	rest := v[len(dateLayout):]
	rest = strings.TrimPrefix(rest, "T")
	rest = strings.TrimPrefix(rest, " ")
	return dateOf(d), rest, nil
}

// CheckDate reports, as a CodeMalformedTimeValue error, an event whose start
// has no usable calendar date. Such an event is skipped on every day.
func CheckDate(ev model.CalendarEvent) error {
	if _, _, err := splitDateTime(ev.Start); err != nil {
		return newError(CodeMalformedTimeValue, err, "event %s: unparsable start date %q", ev.ID, ev.Start)
	}
	return nil
}

// parseClock returns minutes since midnight. "24:00" is accepted as the
// end of the day.
func parseClock(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("missing clock time")
	}
	if v == "24:00" || v == "24:00:00" {
		return minutesPerDay, nil
	}
	for _, l := range clockLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", v)
}

// resolveSpan turns an event into a span, recovering from bad time values.
// ok is false only when the date itself is unusable; such an event cannot
// be placed on any day.
func resolveSpan(index int, ev model.CalendarEvent, cfg Config) (s span, warnings []Warning, ok bool) {
	s.index = index

	date, clock, err := splitDateTime(ev.Start)
	if err != nil {
		warnings = append(warnings, Warning{
			Code:    CodeMalformedTimeValue,
			EventID: ev.ID,
			Message: fmt.Sprintf("unparsable start date %q; event skipped", ev.Start),
		})
		return s, warnings, false
	}
	s.date = date

	start, err := parseClock(clock)
	if err != nil || start >= minutesPerDay {
		warnings = append(warnings, Warning{
			Code:    CodeMalformedTimeValue,
			EventID: ev.ID,
			Message: fmt.Sprintf("unparsable start time %q; using zero duration at 00:00", ev.Start),
		})
		return s, warnings, true
	}
	s.start = start

	if strings.TrimSpace(ev.End) == "" {
		s.end = start + cfg.DefaultDurationMinutes
		return s, warnings, true
	}

	end, err := parseEnd(ev.End, date)
	if err != nil {
		warnings = append(warnings, Warning{
			Code:    CodeMalformedTimeValue,
			EventID: ev.ID,
			Message: fmt.Sprintf("unparsable end time %q; using zero duration", ev.End),
		})
		s.end = start
		return s, warnings, true
	}

	if end <= start {
		warnings = append(warnings, Warning{
			Code:    CodeNonPositiveDuration,
			EventID: ev.ID,
			Message: fmt.Sprintf("end %q is not after start %q; using %d minutes", ev.End, ev.Start, cfg.DefaultDurationMinutes),
		})
		end = start + cfg.DefaultDurationMinutes
	}
	s.end = end
	return s, warnings, true
}

// parseEnd accepts a bare clock time, or a full date-time. A full date-time
// on a later date is cut at midnight; on an earlier date it yields 0.
func parseEnd(v string, startDate civilDate) (int, error) {
	if !looksLikeDateTime(v) {
		return parseClock(v)
	}
	date, clock, err := splitDateTime(v)
	if err != nil {
		return 0, err
	}
	switch {
	case startDate.before(date):
		return minutesPerDay, nil
	case date.before(startDate):
		return 0, nil
	}
	return parseClock(clock)
}

func looksLikeDateTime(v string) bool {
	v = strings.TrimSpace(v)
	return len(v) >= len(dateLayout) && v[4] == '-' && v[7] == '-'
}
