package codec

import (
	"errors"
	"fmt"
)

// MalformedValueError reports a wire value that does not have the expected
// shape. Text is the offending JSON text as received.
type MalformedValueError struct {
	Text     string
	Expected string
	Err      error
}

func (e *MalformedValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: malformed value %s: expected %s: %v", e.Text, e.Expected, e.Err)
	}
	return fmt.Sprintf("codec: malformed value %s: expected %s", e.Text, e.Expected)
}

func (e *MalformedValueError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if err is, or wraps, a *MalformedValueError.
func IsMalformed(err error) bool {
	var e *MalformedValueError
	return errors.As(err, &e)
}
