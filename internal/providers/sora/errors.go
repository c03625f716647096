package sora

import (
	"errors"
	"fmt"
	"net/http"

	"sorastudio/internal/domain"
)

// ProviderError is a non-2xx answer from the videos API.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("sora: status %d", e.StatusCode)
}

// Is lets callers classify with errors.Is against the domain sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case domain.ErrInvalidCredentials:
		return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
	case domain.ErrProviderUnavailable:
		return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// AsProviderError unwraps err into a ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}
