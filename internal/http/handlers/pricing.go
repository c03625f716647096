package handlers

import (
	"net/http"
	"strconv"

	"sorastudio/internal/domain"
)

// Pricing returns the rate table, or a single quote when model, resolution
// and duration are given.
func (a *App) Pricing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")
	if model == "" {
		a.json(w, http.StatusOK, a.Manager.Pricing().Table())
		return
	}

	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		a.error(w, http.StatusBadRequest, string(domain.ReasonInvalidParameters), "duration must be a number")
		return
	}
	a.json(w, http.StatusOK, a.Manager.Quote(domain.Model(model), domain.Resolution(q.Get("resolution")), duration))
}
