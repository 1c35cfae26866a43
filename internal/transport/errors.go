package transport

import (
	"errors"
	"fmt"
)

// Error is a failed request: either the server answered with a status
// >= 400 (StatusCode set) or the request never completed (Err set).
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport: %s %s (%d): %s: %v", e.Method, e.Path, e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport: %s %s (%d): %s", e.Method, e.Path, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("transport: %s %s: %s: %v", e.Method, e.Path, e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// HasStatus reports whether err is an *Error with the given status code.
func HasStatus(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}
