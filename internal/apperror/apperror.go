package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of gateway failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConfiguration     Kind = "configuration"
	KindProviderTransport Kind = "provider_transport"
	KindProviderData      Kind = "provider_data"
	KindRateLimit         Kind = "rate_limit"
	KindMissingData       Kind = "missing_data"
	KindMalformedValue    Kind = "malformed_value"
	KindInternal          Kind = "internal"
)

// Error is a gateway failure carrying a client-facing message and optional
// raw detail text.
type Error struct {
	Kind    Kind
	Message string
	Details string
	// UpstreamStatus is the provider's HTTP status for transport errors.
	// Zero when the request never completed.
	UpstreamStatus int
	Cause          error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to the status reported to API callers.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindProviderData:
		return http.StatusBadRequest
	case KindMissingData:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindProviderTransport:
		if e.UpstreamStatus >= 400 && e.UpstreamStatus <= 599 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// ProviderTransport reports a failed or non-2xx provider call. status is 0
// when no response was received.
func ProviderTransport(status int, message, details string, cause error) *Error {
	return &Error{
		Kind:           KindProviderTransport,
		Message:        message,
		Details:        details,
		UpstreamStatus: status,
		Cause:          cause,
	}
}

func ProviderData(message string) *Error {
	return &Error{Kind: KindProviderData, Message: message}
}

func RateLimit(note string) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Message: "API rate limit reached. Please try again later.",
		Details: note,
	}
}

func MissingData(message, details string) *Error {
	return &Error{Kind: KindMissingData, Message: message, Details: details}
}

func MalformedValue(message, details string) *Error {
	return &Error{Kind: KindMalformedValue, Message: message, Details: details}
}

func Internal(message string, cause error) *Error {
	e := &Error{Kind: KindInternal, Message: message, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error, fallbackMessage string) *Error {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(fallbackMessage, err)
}
