// Package bootstrap assembles the lifecycle services from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"sorastudio/internal/adapter/repo"
	"sorastudio/internal/infra"
	"sorastudio/internal/lifecycle"
	"sorastudio/internal/pricing"
	"sorastudio/internal/providers/sora"
	"sorastudio/internal/storage"
)

// Services holds the long-lived components shared by the binaries.
type Services struct {
	Manager    *lifecycle.Manager
	Reconciler *lifecycle.Reconciler
	close      func()
}

// Close releases the job store.
func (s *Services) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// Build opens the store, loads the rate table and constructs the provider
// client, manager and reconciler.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Services, error) {
	calc := pricing.Default()
	if cfg.PricingFile != "" {
		loaded, err := pricing.Load(cfg.PricingFile)
		if err != nil {
			return nil, fmt.Errorf("load pricing: %w", err)
		}
		calc = loaded
	}

	cache, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := repo.OpenJobRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := sora.NewClient(sora.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   &http.Client{Timeout: cfg.ProviderTimeout},
		Logger:       &logger,
	})
	if !client.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY is not set; submissions will be refused")
	}

	manager, err := lifecycle.NewManager(lifecycle.Options{
		Store:    store,
		Provider: client,
		Pricing:  calc,
		Cache:    cache,
		Logger:   &logger,
	})
	if err != nil {
		closeStore()
		return nil, err
	}

	return &Services{
		Manager:    manager,
		Reconciler: lifecycle.NewReconciler(manager, cfg.PollInterval, logger),
		close:      closeStore,
	}, nil
}
