package layout

import "famcal/internal/model"

// Geometry maps a time range (minutes since midnight) and a column
// assignment to a rectangle in percentages of the day column.
//
// The range is clipped to the visible window. An empty clipped range gives
// zero height. Top is shifted up by the slot offset so short events sit
// centered on hour lines, and never goes above 0. Events after the window
// keep a top past 100 with zero height.
func Geometry(start, end, column, columns int, cfg Config) model.Rect {
	cfg = cfg.withDefaults()
	if columns < 1 {
		columns = 1
	}

	clippedStart := max(cfg.WindowStartMinute, start)
	clippedEnd := min(cfg.WindowEndMinute, end)
	window := cfg.windowDuration()

	var r model.Rect
	if clippedEnd > clippedStart {
		r.Height = float64(clippedEnd-clippedStart) / window * 100
	}

	r.Top = float64(clippedStart-cfg.WindowStartMinute)/window*100 - cfg.slotOffset()
	r.Top = max(r.Top, 0)

	r.Width = 100 / float64(columns)
	r.Left = float64(column) * r.Width
	return r
}
