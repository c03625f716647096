// Command worker keeps jobs reconciled without any UI attached. It registers
// itself as a permanent observer, so the poll loop runs for its lifetime.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sorastudio/internal/bootstrap"
	"sorastudio/internal/domain"
	"sorastudio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: init failed")
	}
	defer services.Close()

	services.Reconciler.OnTick(func(jobs []*domain.Job) {
		active := 0
		for _, job := range jobs {
			if !job.Status.Terminal() {
				active++
			}
		}
		logger.Debug().Int("jobs", len(jobs)).Int("active", active).Msg("worker: tick")
	})

	release := services.Reconciler.Observe()
	logger.Info().Dur("interval", cfg.PollInterval).Msg("worker: started")

	<-ctx.Done()
	release()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	services.Reconciler.Shutdown(shutdownCtx)
	logger.Info().Msg("worker: stopped")
}
