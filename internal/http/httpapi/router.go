package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sorastudio/internal/http/handlers"
	"sorastudio/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger             zerolog.Logger
	CORSAllowedOrigins []string
	// JWTSecret enables bearer auth on /v1/videos and /v1/pricing when set.
	JWTSecret       string
	SubmitPerMinute int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Docs
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(middleware.AuthJWT(opts.JWTSecret))
		}

		r.Get("/v1/pricing", app.Pricing)

		r.Route("/v1/videos", func(r chi.Router) {
			r.Get("/", app.ListVideos)
			r.With(middleware.RateLimit(opts.SubmitPerMinute, time.Minute)).Post("/", app.CreateVideo)
			r.Get("/watch", app.WatchVideos)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetVideo)
				r.Patch("/", app.RenameVideo)
				r.Delete("/", app.DeleteVideo)
				r.Post("/refresh", app.RefreshVideo)
				r.Get("/content", app.VideoContent)
			})
		})
	})

	return r
}
