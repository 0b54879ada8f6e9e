package layout

import (
	"fmt"
	"time"

	"famcal/internal/model"
)

// DayView is the layout of one day.
type DayView struct {
	Date string `json:"date"`

	// Columns is the number of columns the whole day was packed into.
	Columns int `json:"columns"`

	// Events are in start order (stable), not grouped by column.
	Events []model.PositionedEvent `json:"events"`

	// Warnings lists recovered per-event problems.
	Warnings []Warning `json:"warnings,omitempty"`
}

// LayoutDay lays out the events that fall on target into side-by-side
// columns with percentage geometry for the configured window.
//
// It is pure: it neither mutates events nor keeps state, so days may be laid
// out concurrently. Bad time values on single events are recovered and
// reported in DayView.Warnings; only a caller contract violation (a zero
// target date) returns an error.
//
// Packing is O(n^2) in the number of same-day events.
func LayoutDay(events []model.CalendarEvent, target time.Time, cfg Config) (DayView, error) {
	if target.IsZero() {
		return DayView{}, newError(CodeInvalidInputShape, nil, "target date is not set")
	}
	cfg = cfg.withDefaults()
	day := dateOf(target)

	view := DayView{
		Date:   target.Format(dateLayout),
		Events: []model.PositionedEvent{},
	}

	spans := make([]span, 0, len(events))
	for i, ev := range events {
		s, warnings, ok := resolveSpan(i, ev, cfg)
		if !ok {
			view.Warnings = append(view.Warnings, warnings...)
			continue
		}
		if !matches(s.date, day, cfg.MatchMode) {
			continue
		}
		view.Warnings = append(view.Warnings, warnings...)
		// Weekday mode compares clock times only.
		s.date = day
		spans = append(spans, s)
	}

	if cfg.MatchMode == MatchWeekday {
		view.Warnings = append([]Warning{{
			Code:    CodeDeprecatedMatchMode,
			Message: fmt.Sprintf("weekday matching lays out every %s regardless of week", day.weekday()),
		}}, view.Warnings...)
	}

	if len(spans) == 0 {
		return view, nil
	}

	sortSpans(spans)
	columns := packColumns(spans)
	column := columnIndex(columns, len(spans))
	view.Columns = len(columns)

	var widths []int
	if cfg.WidthMode == WidthCluster {
		widths = clusterColumns(spans, column)
	}

	for i, s := range spans {
		total := view.Columns
		if widths != nil {
			total = widths[i]
		}
		rect := Geometry(s.start, s.end, column[i], total, cfg)
		if cfg.OmitHidden && rect.Height == 0 {
			continue
		}
		view.Events = append(view.Events, model.PositionedEvent{
			CalendarEvent: events[s.index],
			Layout:        rect,
			Column:        column[i],
		})
	}

	return view, nil
}

func matches(d, target civilDate, mode MatchMode) bool {
	if mode == MatchWeekday {
		return d.weekday() == target.weekday()
	}
	return d == target
}
