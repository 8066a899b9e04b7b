// Package corerr defines the module's error taxonomy. The agent, media,
// transport and timer packages return plain fmt-wrapped errors and do
// not construct these values. It follows the same shape as the
// teacher's pkg/media_sdp SDPError: a small code enum plus a wrapped
// cause, exposed through errors.Is/As.
package corerr

import "fmt"

// Kind classifies an error without fixing its message, so callers can
// branch on it (e.g. to decide whether to retry digest auth).
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindOutOfMemory
	KindTransportDown
	KindProtocolParse
	KindAuthRequired
	KindAuthFailed
	KindRemoteBusy
	KindRemoteDecline
	KindRemoteUnavailable
	KindIceFailure
	KindDeviceError
	KindTimeout
)

var kindNames = [...]string{
	"invalid_argument",
	"out_of_memory",
	"transport_down",
	"protocol_parse",
	"auth_required",
	"auth_failed",
	"remote_busy",
	"remote_decline",
	"remote_unavailable",
	"ice_failure",
	"device_error",
	"timeout",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Error is the concrete error type carried across package boundaries.
type Error struct {
	Kind    Kind
	Code    int // SIP status code when applicable, 0 otherwise
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an Error with no SIP code and no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCode attaches a SIP status code (e.g. 486, 401) to a new Error.
func WithCode(kind Kind, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying cause as its Unwrap target.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ce, ok := err.(*Error); ok {
		e = ce
	} else {
		return false
	}
	return e.Kind == kind
}

// KindFromStatus maps a SIP final-response status code to a Kind, per
// spec.md §7's "RemoteBusy / RemoteDecline / RemoteUnavailable" row.
func KindFromStatus(status int) Kind {
	switch status {
	case 486, 600:
		return KindRemoteBusy
	case 603:
		return KindRemoteDecline
	case 480, 404, 410:
		return KindRemoteUnavailable
	case 401, 407:
		return KindAuthRequired
	default:
		return KindRemoteUnavailable
	}
}
