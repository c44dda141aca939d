package diagnose

import (
	"errors"
	"net/http"
)

// Kind classifies relay failures.
type Kind string

const (
	KindMissingImage       Kind = "MissingImage"
	KindInvalidImageFormat Kind = "InvalidImageFormat"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindConfiguration      Kind = "ConfigurationError"
	KindUpstream           Kind = "UpstreamError"
	KindUpstreamTimeout    Kind = "UpstreamTimeout"
	KindInternal           Kind = "InternalError"
)

// Status maps a kind onto the HTTP status of the relay response.
func (k Kind) Status() int {
	switch k {
	case KindMissingImage, KindInvalidImageFormat, KindInvalidRequest:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus is the inverse of Status, used by clients that only see a status code.
func KindFromStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest:
		return KindInvalidRequest
	case http.StatusBadGateway:
		return KindUpstream
	case http.StatusGatewayTimeout:
		return KindUpstreamTimeout
	default:
		return KindInternal
	}
}

var defaultMessages = map[Kind]string{
	KindMissingImage:       "No image provided.",
	KindInvalidImageFormat: "Invalid image format.",
	KindInvalidRequest:     "Invalid request body.",
	KindConfiguration:      "API key is not configured on the server.",
	KindUpstream:           "The AI service returned an error.",
	KindUpstreamTimeout:    "The AI service did not respond in time.",
	KindInternal:           "An internal server error occurred.",
}

// Error is a classified failure safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if m, ok := defaultMessages[e.Kind]; ok {
		return m
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or InternalError for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
