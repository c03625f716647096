package repo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sorastudio/internal/domain"
	"sorastudio/internal/infra"
)

// OpenJobRepository builds the job store selected by cfg.DatabaseDriver. The
// returned close func releases the underlying connections.
func OpenJobRepository(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.JobRepository, func(), error) {
	switch cfg.DatabaseDriver {
	case infra.DriverPostgres:
		if _, err := infra.MigratePostgres(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		runner := infra.NewSQLRunner(pool, logger)
		return NewJobRepository(runner), pool.Close, nil
	case infra.DriverSQLite:
		db, err := infra.OpenSQLite(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewJobRepositorySQLite(db.DB), func() { _ = db.Close() }, nil
	case infra.DriverMemory:
		logger.Warn().Msg("using in-memory job store; jobs are lost on restart")
		return NewJobRepositoryMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
