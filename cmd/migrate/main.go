// Command migrate applies the embedded Postgres schema. The api binary does
// the same on start; this exists for deploy pipelines that migrate first.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sorastudio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.DatabaseDriver != infra.DriverPostgres {
		logger.Info().Str("driver", cfg.DatabaseDriver).Msg("nothing to migrate; sqlite migrates on open")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applied, err := infra.MigratePostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Strs("applied", applied).Msg("migrations complete")
}
