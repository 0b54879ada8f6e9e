package layout

import (
	"errors"
	"fmt"
)

// Code is a machine-readable problem code.
type Code string

const (
	// CodeInvalidInputShape means the input is not a list of events. Fatal.
	CodeInvalidInputShape Code = "INVALID_INPUT_SHAPE"
	// CodeMalformedTimeValue means a start/end could not be parsed. Recovered.
	CodeMalformedTimeValue Code = "MALFORMED_TIME_VALUE"
	// CodeNonPositiveDuration means end <= start. Recovered with the default duration.
	CodeNonPositiveDuration Code = "NON_POSITIVE_DURATION"
	// CodeDeprecatedMatchMode is reported once per call in weekday match mode.
	CodeDeprecatedMatchMode Code = "DEPRECATED_MATCH_MODE"
)

// Error is a fatal layout error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Warning is a non-fatal diagnostic about a single event (or, for
// CodeDeprecatedMatchMode, about the call as a whole).
type Warning struct {
	Code    Code   `json:"code"`
	EventID string `json:"event_id,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.EventID == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s: event %s: %s", w.Code, w.EventID, w.Message)
}
