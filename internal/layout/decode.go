package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"famcal/internal/model"
)

// DecodeEvents reads a JSON array of events. Anything other than an array
// (an object, null, a scalar, or malformed JSON), or an array item that is
// not an object, fails the whole call with CodeInvalidInputShape.
//
// Items are decoded leniently. A wrongly typed field never fails the call:
// a non-string start or end is kept as its raw JSON text, which LayoutDay
// then reports as CodeMalformedTimeValue for that event alone.
func DecodeEvents(r io.Reader) ([]model.CalendarEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(CodeInvalidInputShape, err, "read events")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, newError(CodeInvalidInputShape, nil, "events must be a JSON array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, newError(CodeInvalidInputShape, err, "decode events")
	}

	events := make([]model.CalendarEvent, 0, len(items))
	for i, item := range items {
		ev, err := decodeEvent(item)
		if err != nil {
			return nil, newError(CodeInvalidInputShape, err, "event %d is not an object", i)
		}
		events = append(events, ev)
	}
	return events, nil
}

// decodeEvent maps one JSON object onto a CalendarEvent.
func decodeEvent(item json.RawMessage) (model.CalendarEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return model.CalendarEvent{}, err
	}
	if fields == nil {
		return model.CalendarEvent{}, errors.New("null event")
	}

	ev := model.CalendarEvent{
		ID:       text(fields["id"]),
		Title:    text(fields["title"]),
		Start:    text(fields["start"]),
		End:      text(fields["end"]),
		Color:    text(fields["color"]),
		SourceID: text(fields["source_id"]),
	}
	if raw, ok := fields["attendees"]; ok {
		var attendees []string
		if err := json.Unmarshal(raw, &attendees); err == nil {
			ev.Attendees = attendees
		}
	}
	return ev, nil
}

// text returns a JSON string's value, "" for a missing or null field, and
// the raw JSON text for anything else.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
