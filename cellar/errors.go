package cellar

import (
	"errors"
	"fmt"
)

// ErrUnknownCallVariant is returned for calls outside the closed set of cellar operations.
var ErrUnknownCallVariant = errors.New("unknown call variant")

// EncodingError is returned when a call argument fails its schema validation. Nothing is ever
// coerced into range.
type EncodingError struct {
	Method string
	Field  string
	Reason string
}

// NewEncodingError creates a new EncodingError.
func NewEncodingError(method, field, reason string) *EncodingError {
	return &EncodingError{Method: method, Field: field, Reason: reason}
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encoding %s: %s", e.Method, e.Reason)
	}

	return fmt.Sprintf("encoding %s: field %s: %s", e.Method, e.Field, e.Reason)
}
