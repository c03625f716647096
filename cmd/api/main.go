package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sorastudio/internal/bootstrap"
	"sorastudio/internal/http/handlers"
	httpapi "sorastudio/internal/http/httpapi"
	"sorastudio/internal/infra"
	"sorastudio/internal/realtime"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to initialise services")
	}
	defer services.Close()

	// Watchers get the job list after every reconciliation pass.
	hub := realtime.NewHub(logger)
	services.Reconciler.OnTick(hub.Broadcast)

	app := handlers.NewApp(services.Manager, services.Reconciler, hub, logger, cfg.CORSAllowedOrigins)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		JWTSecret:          cfg.JWTSecret,
		SubmitPerMinute:    cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("addr", server.Addr()).Str("driver", cfg.DatabaseDriver).Msg("API listening")
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	services.Reconciler.Shutdown(shutdownCtx)
	logger.Info().Msg("server stopped")
}
