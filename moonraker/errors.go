package moonraker

import (
	"fmt"
	"strings"
)

// ErrorKind classifies every failure the client can surface.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindDisconnected
	KindBadResponse
	KindKlippyNotReady
	KindValidation
	KindFileNotFound
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDisconnected:
		return "disconnected"
	case KindBadResponse:
		return "bad_response"
	case KindKlippyNotReady:
		return "klippy_not_ready"
	case KindValidation:
		return "validation"
	case KindFileNotFound:
		return "file_not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the one error type crossing the client's boundary. UserMessage
// is a short, domain-phrased string the display layer can show verbatim.
type Error struct {
	Kind        ErrorKind
	Method      string
	Message     string
	UserMessage string
}

func (e *Error) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("moonraker: %s: %s: %s", e.Method, e.Kind, e.Message)
	}
	return fmt.Sprintf("moonraker: %s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// NewError builds an *Error with the standard user message for its kind.
// Callers outside the transport use it for failures raised before any
// network traffic, such as argument validation.
func NewError(kind ErrorKind, method, message string) *Error {
	return newError(kind, method, message)
}

func newError(kind ErrorKind, method, message string) *Error {
	return &Error{
		Kind:        kind,
		Method:      method,
		Message:     message,
		UserMessage: userMessageFor(kind),
	}
}

func userMessageFor(kind ErrorKind) string {
	switch kind {
	case KindTimeout:
		return "Printer did not respond"
	case KindDisconnected:
		return "Not connected to printer"
	case KindKlippyNotReady:
		return "Printer is not ready"
	case KindValidation:
		return "Value out of safe range"
	case KindFileNotFound:
		return "File not found"
	default:
		return "Communication error with printer"
	}
}

// errorFromReply translates a JSON-RPC error object. Moonraker reuses HTTP
// status codes for application errors and the JSON-RPC reserved range for
// protocol ones.
func errorFromReply(method string, code int, message string) *Error {
	kind := KindUnknown
	switch {
	case code <= -32600 && code >= -32700:
		kind = KindBadResponse
	case code == 404:
		kind = KindFileNotFound
	case code == 503 || strings.Contains(strings.ToLower(message), "klippy"):
		kind = KindKlippyNotReady
	case code >= 400 && code < 600:
		kind = KindTransport
	}
	e := newError(kind, method, message)
	if e.Message == "" {
		e.Message = fmt.Sprintf("server error %d", code)
	}
	return e
}
