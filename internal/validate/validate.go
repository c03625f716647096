// Package validate holds the input rules applied before a job is dispatched.
package validate

import (
	"strings"
	"unicode/utf8"

	"sorastudio/internal/domain"
)

// Prompt bounds, in characters.
const (
	MinPromptLength = 1
	MaxPromptLength = 2000
)

// Compatibility reports whether a model accepts a resolution.
type Compatibility interface {
	Supports(model domain.Model, res domain.Resolution) bool
}

// Prompt checks the prompt length in characters.
func Prompt(prompt string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(prompt))
	if n < MinPromptLength {
		return domain.NewValidationError(domain.ReasonPromptOutOfBounds, "prompt is required")
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return domain.NewValidationError(domain.ReasonPromptOutOfBounds, "prompt must not exceed %d characters", MaxPromptLength)
	}
	return nil
}

// Name checks a user supplied job name.
func Name(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return domain.NewValidationError(domain.ReasonInvalidName, "name is required")
	}
	if n > domain.MaxNameLength {
		return domain.NewValidationError(domain.ReasonInvalidName, "name must not exceed %d characters", domain.MaxNameLength)
	}
	return nil
}

// Parameters checks model, resolution and duration against the supported set.
func Parameters(model domain.Model, res domain.Resolution, durationSeconds int, compat Compatibility) error {
	if !model.Valid() {
		return domain.NewValidationError(domain.ReasonInvalidParameters, "unsupported model %q", model)
	}
	if compat != nil && !compat.Supports(model, res) {
		return domain.NewValidationError(domain.ReasonInvalidParameters, "resolution %q is not available for %s", res, model)
	}
	if !domain.ValidDuration(durationSeconds) {
		return domain.NewValidationError(domain.ReasonInvalidParameters, "duration must be 4, 8 or 12 seconds")
	}
	return nil
}
