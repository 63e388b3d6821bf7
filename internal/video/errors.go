package video

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Error codes
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeResource       = "RESOURCE"
	CodeTransport      = "TRANSPORT"
)

// Why a stream ended. Transport reasons appear in the status text as
// "stream ended: <reason>".
const (
	ReasonCleared           = "cleared"
	ReasonReplaced          = "replaced"
	ReasonStopped           = "stopped"
	ReasonShutdown          = "shutdown"
	ReasonUnknownCamera     = "unknown camera"
	ReasonConnectionRefused = "connection refused"
	ReasonConnectFailed     = "connection failed"
	ReasonTimeout           = "timeout waiting for video"
	ReasonConnectionLost    = "connection lost"
	ReasonEndOfStream       = "end of stream"
	ReasonDecode            = "decode failure"
)

// Error is the domain error for stream management. Code selects the
// category, Message is the human readable reason.
type Error struct {
	Code    string
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

// Is matches another *Error by code, and by message when the target has one.
// This lets errors.Is(err, ErrTransport) test the category alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Category sentinels for errors.Is.
var (
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest}
	ErrResource       = &Error{Code: CodeResource}
	ErrTransport      = &Error{Code: CodeTransport}
)

// InvalidRequestError reports malformed caller input. Returned synchronously.
func InvalidRequestError(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// ResourceError reports a local allocation failure. Returned synchronously.
func ResourceError(message string, cause error) *Error {
	return &Error{Code: CodeResource, Message: message, Cause: cause}
}

// TransportError reports a failure of the live connection. It is never
// returned from RequestStream; it ends the stream instead.
func TransportError(reason string, cause error) *Error {
	return &Error{Code: CodeTransport, Message: reason, Cause: cause}
}

// IsInvalidRequest reports whether err is an InvalidRequestError.
func IsInvalidRequest(err error) bool { return errors.Is(err, ErrInvalidRequest) }

// IsResource reports whether err is a ResourceError.
func IsResource(err error) bool { return errors.Is(err, ErrResource) }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// asTransport turns whatever a transport returned into a TransportError,
// picking a reason from the error when the transport did not name one.
// fallback is used for errors that carry no recognizable cause.
func asTransport(err error, fallback string) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeTransport {
			return e
		}
		return TransportError(e.Message, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return TransportError(ReasonConnectionRefused, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return TransportError(ReasonTimeout, err)
	default:
		return TransportError(fallback, err)
	}
}
