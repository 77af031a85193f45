// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers missing entities and entities outside the caller's institution.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned when a policy check denies the action.
	ErrForbidden = errors.New("this action is unauthorized")
	// ErrUnauthenticated is returned when no valid, active user is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// BusinessError is an expected, user-facing rule violation.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// Business returns a BusinessError with the given message.
func Business(msg string) error {
	return &BusinessError{Message: msg}
}

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// Add records a field message.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the receiver as an error only when it has fields.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Invalid builds a single-field ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IsBusiness reports whether err wraps a BusinessError.
func IsBusiness(err error) bool {
	var b *BusinessError
	return errors.As(err, &b)
}

// Kind returns a stable label for logs.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return "validation"
	}
	if IsBusiness(err) {
		return "business"
	}
	return "unexpected"
}
