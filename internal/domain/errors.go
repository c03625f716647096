package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateExternalID = errors.New("duplicate external id")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrMissingCredentials  = errors.New("provider credentials not configured")
	ErrInvalidCredentials  = errors.New("invalid provider credentials")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrContentUnavailable  = errors.New("video content is not available yet")
)

// ValidationReason identifies which input rule rejected a request.
type ValidationReason string

const (
	ReasonInvalidFormat     ValidationReason = "invalid_format"
	ReasonTooLarge          ValidationReason = "too_large"
	ReasonInvalidDimensions ValidationReason = "invalid_dimensions"
	ReasonUnreadable        ValidationReason = "unreadable"
	ReasonPromptOutOfBounds ValidationReason = "prompt_out_of_bounds"
	ReasonInvalidParameters ValidationReason = "invalid_parameters"
	ReasonInvalidName       ValidationReason = "invalid_name"
)

// ValidationError is returned before any network call when input is rejected.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(reason ValidationReason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError, returning it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DispatchError reports that the provider refused a new job. Message is the
// provider's own wording when it supplied one.
type DispatchError struct {
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "dispatch failed"
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
