package layout

import "famcal/internal/model"

// overlaps reports whether two spans intersect. Intervals are half-open, so
// an event ending exactly when another begins does not overlap it. Spans on
// different dates never overlap.
func overlaps(a, b span) bool {
	if a.date != b.date {
		return false
	}
	return a.start < b.end && b.start < a.end
}

// EventsOverlap reports whether two events intersect in time, applying the
// same parsing and recovery rules as LayoutDay. Events with an unusable
// date never overlap anything.
func EventsOverlap(a, b model.CalendarEvent, cfg Config) bool {
	cfg = cfg.withDefaults()
	sa, _, okA := resolveSpan(0, a, cfg)
	sb, _, okB := resolveSpan(1, b, cfg)
	if !okA || !okB {
		return false
	}
	return overlaps(sa, sb)
}
