package layout

const (
	defaultWindowStartMinute      = 7 * 60
	defaultWindowEndMinute        = 22 * 60
	defaultSlotCount              = 15
	defaultDefaultDurationMinutes = 60

	minutesPerDay = 24 * 60
)

// WidthMode selects how many columns an event's width is divided by.
type WidthMode string

const (
	// WidthDay divides every event by the column count of the whole day.
	WidthDay WidthMode = "day"
	// WidthCluster divides an event by the column count of its own overlap
	// cluster only.
	WidthCluster WidthMode = "cluster"
)

// MatchMode selects which events belong to the target day.
type MatchMode string

const (
	// MatchDate keeps events whose calendar date equals the target date.
	MatchDate MatchMode = "date"
	// MatchWeekday keeps events whose weekday equals the target's weekday,
	// regardless of week. Deprecated: it conflates every occurrence of a
	// weekday and exists only for compatibility with older layouts.
	MatchWeekday MatchMode = "weekday"
)

// Config controls the visible window and the layout rules.
// The zero value is usable; zero fields take the documented defaults.
type Config struct {
	// WindowStartMinute / WindowEndMinute bound the visible time window in
	// minutes since midnight. Defaults: 420 (07:00) and 1320 (22:00).
	WindowStartMinute int `json:"window_start_minute"`
	WindowEndMinute   int `json:"window_end_minute"`

	// SlotCount is the number of equal time slots drawn across the window.
	// It only feeds the default vertical slot offset. Default 15.
	SlotCount int `json:"slot_count"`

	// DefaultDurationMinutes applies to events without an end, and to events
	// whose end is not after their start. Default 60.
	DefaultDurationMinutes int `json:"default_duration_minutes"`

	// SlotOffsetPercent is subtracted from every top coordinate. If nil,
	// half a slot (100 / SlotCount / 2) is used.
	SlotOffsetPercent *float64 `json:"slot_offset_percent,omitempty"`

	WidthMode WidthMode `json:"width_mode"`
	MatchMode MatchMode `json:"match_mode"`

	// OmitHidden drops events whose clipped height is zero (entirely
	// outside the window, or zero duration).
	OmitHidden bool `json:"omit_hidden"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	var c Config
	return c.withDefaults()
}

// withDefaults fills zero or invalid fields. An inverted or empty window
// falls back to the default window as a whole.
func (c Config) withDefaults() Config {
	if c.WindowStartMinute < 0 || c.WindowStartMinute > minutesPerDay {
		c.WindowStartMinute = 0
	}
	if c.WindowEndMinute < 0 || c.WindowEndMinute > minutesPerDay {
		c.WindowEndMinute = 0
	}
	if c.WindowStartMinute == 0 && c.WindowEndMinute == 0 {
		c.WindowStartMinute = defaultWindowStartMinute
		c.WindowEndMinute = defaultWindowEndMinute
	}
	if c.WindowEndMinute <= c.WindowStartMinute {
		c.WindowStartMinute = defaultWindowStartMinute
		c.WindowEndMinute = defaultWindowEndMinute
	}
	if c.SlotCount <= 0 {
		c.SlotCount = defaultSlotCount
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = defaultDefaultDurationMinutes
	}
	switch c.WidthMode {
	case WidthDay, WidthCluster:
	default:
		c.WidthMode = WidthDay
	}
	switch c.MatchMode {
	case MatchDate, MatchWeekday:
	default:
		c.MatchMode = MatchDate
	}
	return c
}

func (c Config) windowDuration() float64 {
	return float64(c.WindowEndMinute - c.WindowStartMinute)
}

func (c Config) slotOffset() float64 {
	if c.SlotOffsetPercent != nil {
		return *c.SlotOffsetPercent
	}
	return 100 / float64(c.SlotCount) / 2
}
