package misp

import (
	"fmt"
	"net/http"

	"github.com/ashita-ai/misp/codec"
	"github.com/ashita-ai/misp/internal/transport"
	"github.com/ashita-ai/misp/model"
)

// TransportError reports a request the transport could not complete, or
// one the server answered with a status >= 400.
type TransportError = transport.Error

// MalformedValueError reports a response value that does not match its
// wire encoding, or a record missing a required field.
type MalformedValueError = codec.MalformedValueError

// ErrAddressResolution is returned when an identifier cannot address an
// entity: it is empty, or text could not be parsed into one.
var ErrAddressResolution = model.ErrAddressResolution

// UnexpectedResponseError reports a successful response whose body does
// not have the expected envelope (for example an error object served with
// status 200, or HTML from a proxy).
type UnexpectedResponseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnexpectedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("misp: unexpected response from %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("misp: unexpected response from %s: %s", e.Path, e.Reason)
}

func (e *UnexpectedResponseError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return transport.HasStatus(err, http.StatusNotFound) }

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool { return transport.HasStatus(err, http.StatusUnauthorized) }

// IsForbidden returns true if the error is a 403.
func IsForbidden(err error) bool { return transport.HasStatus(err, http.StatusForbidden) }

// IsMalformed returns true if err wraps a *MalformedValueError.
func IsMalformed(err error) bool { return codec.IsMalformed(err) }
