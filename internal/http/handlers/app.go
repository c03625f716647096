package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sorastudio/internal/lifecycle"
	"sorastudio/internal/realtime"
)

// App carries the dependencies shared by every handler.
type App struct {
	Manager    *lifecycle.Manager
	Reconciler *lifecycle.Reconciler
	Hub        *realtime.Hub
	Logger     zerolog.Logger

	upgrader websocket.Upgrader
}

// NewApp wires handlers to the lifecycle manager. allowedOrigins limits
// websocket upgrades; an empty list accepts same-origin requests only.
func NewApp(manager *lifecycle.Manager, reconciler *lifecycle.Reconciler, hub *realtime.Hub, logger zerolog.Logger, allowedOrigins []string) *App {
	app := &App{
		Manager:    manager,
		Reconciler: reconciler,
		Hub:        hub,
		Logger:     logger.With().Str("component", "http").Logger(),
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return app
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
