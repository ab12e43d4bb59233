package common

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services, mapped to HTTP responses
// in controller/respond.
var (
	ErrNotFound            = errors.New("record not found")
	ErrExpired             = errors.New("file expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrIntegrity           = errors.New("integrity check failed")
	ErrUnavailable         = errors.New("service unavailable")
	ErrDuplicateChunk      = errors.New("chunk index already stored")
	ErrChunkOutOfOrder     = errors.New("chunk index out of order")
)

// ValidationError caller-supplied input was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError create validation error
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
