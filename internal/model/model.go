package model

// CalendarEvent is one scheduled occurrence as supplied by the data layer
// (ICS feeds, the household events file, or an API caller).
//
// Start carries the calendar date and clock time ("2006-01-02T15:04").
// End is an optional clock time on the same date ("15:04"); when empty the
// layout engine assumes its default duration.
type CalendarEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Start string `json:"start"`
	End   string `json:"end,omitempty"`

	// Pass-through fields; the layout engine only forwards them.
	Attendees []string `json:"attendees,omitempty"`
	Color     string   `json:"color,omitempty"`

	// SourceID names the feed the event came from, if any.
	SourceID string `json:"source_id,omitempty"`
}

// Rect is a rectangle expressed in percentages of a day column's box.
type Rect struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// PositionedEvent is a CalendarEvent plus its computed layout.
type PositionedEvent struct {
	CalendarEvent
	Layout Rect `json:"layout"`

	// Column is the zero-based lane the event was packed into.
	Column int `json:"column"`
}
