package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Kind classifies every failure this service can report.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindNoRatesAvailable    Kind = "NoRatesAvailable"
	KindProviderAuthFailed  Kind = "ProviderAuthFailed"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindProviderRejected    Kind = "ProviderRejected"
	KindConfiguration       Kind = "ConfigurationError"
	KindInternal            Kind = "InternalError"
)

// Error represents an application error
type Error struct {
	Kind     Kind   `json:"kind"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
	// Alternatives lists other active couriers a failed booking can be retried with.
	Alternatives []string `json:"alternatives,omitempty"`
	Err          error    `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Provider != "" {
		prefix = fmt.Sprintf("%s[%s]", e.Kind, e.Provider)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether an idempotent operation may be attempted again.
func (e *Error) Retryable() bool {
	return e.Kind == KindProviderUnavailable
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    StatusFor(kind),
		Message: message,
		Err:     err,
	}
}

// StatusFor maps a kind to the HTTP status it is rendered with.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNoRatesAvailable:
		return http.StatusNotFound
	case KindProviderAuthFailed:
		return http.StatusBadGateway
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case KindProviderRejected:
		return http.StatusUnprocessableEntity
	case KindConfiguration:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a caller-correctable input error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// NoRates reports a lane or courier with nothing priced.
func NoRates(format string, args ...any) *Error {
	return New(KindNoRatesAvailable, fmt.Sprintf(format, args...), nil)
}

// Configuration reports a missing or inactive partner configuration.
func Configuration(courier, format string, args ...any) *Error {
	e := New(KindConfiguration, fmt.Sprintf(format, args...), nil)
	e.Provider = courier
	return e
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// Provider builds an error attributed to a courier.
func Provider(kind Kind, provider, message string, err error) *Error {
	e := New(kind, message, err)
	e.Provider = provider
	return e
}

// KindOf returns the kind of err, InternalError for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromHTTPStatus classifies a non-2xx provider response.
func FromHTTPStatus(provider string, status int, body string) *Error {
	msg := fmt.Sprintf("provider returned status %d", status)
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		if len(trimmed) > 256 {
			trimmed = trimmed[:256]
		}
		msg = fmt.Sprintf("%s: %s", msg, trimmed)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Provider(KindProviderAuthFailed, provider, msg, nil)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return Provider(KindProviderUnavailable, provider, msg, nil)
	case status >= 400:
		return Provider(KindProviderRejected, provider, msg, nil)
	default:
		return Provider(KindInternal, provider, msg, nil)
	}
}

// Normalize is the single translation point from any failure into the taxonomy.
// Already-classified errors keep their kind and gain the provider if missing.
func Normalize(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		if appErr.Provider == "" && provider != "" {
			cp := *appErr
			cp.Provider = provider
			return &cp
		}
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return Provider(KindProviderUnavailable, provider, "provider request timed out", err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return Provider(KindProviderUnavailable, provider, "provider unreachable", err)
	}
	return Provider(KindInternal, provider, "unexpected provider failure", err)
}

// Body is the error half of the uniform response envelope.
type Body struct {
	Kind         Kind     `json:"kind"`
	Message      string   `json:"message"`
	Provider     string   `json:"provider,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// ToBody renders err for the envelope.
func ToBody(err error) *Body {
	if err == nil {
		return nil
	}
	e := Normalize("", err)
	return &Body{Kind: e.Kind, Message: e.Message, Provider: e.Provider, Alternatives: e.Alternatives}
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := Normalize("", c.Errors.Last().Err)
			c.JSON(appErr.Code, gin.H{"success": false, "error": ToBody(appErr), "timestamp": time.Now().UTC()})
			c.Abort()
		}
	}
}
