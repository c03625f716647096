package handlers

import (
	"errors"
	"net/http"

	"sorastudio/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeError maps a domain error onto its HTTP status and error code.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := domain.IsValidation(err); ok {
		status := http.StatusBadRequest
		if ve.Reason == domain.ReasonTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		a.error(w, status, string(ve.Reason), ve.Message)
		return
	}

	var dispatch *domain.DispatchError
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		a.error(w, http.StatusServiceUnavailable, "missing_credentials", "OPENAI_API_KEY is not configured")
	case errors.Is(err, domain.ErrInvalidCredentials):
		a.error(w, http.StatusBadGateway, "invalid_credentials", "the provider rejected the configured API key")
	case errors.As(err, &dispatch):
		a.error(w, http.StatusBadGateway, "provider_rejected", dispatch.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "video not found")
	case errors.Is(err, domain.ErrContentUnavailable):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrDuplicateExternalID), errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.Logger.Warn().Err(err).Str("path", r.URL.Path).Msg("provider unavailable")
		a.error(w, http.StatusBadGateway, "provider_unavailable", "the video provider could not be reached")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
