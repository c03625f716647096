// Package lifecycle creates video jobs on the provider, keeps their local
// records in step with the provider, and removes them again.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sorastudio/internal/domain"
	"sorastudio/internal/pricing"
	"sorastudio/internal/providers/sora"
	"sorastudio/internal/storage"
	"sorastudio/internal/validate"
)

const defaultConcurrency = 4

// Provider is the part of the video API the manager depends on.
type Provider interface {
	HasCredentials() bool
	Create(ctx context.Context, req sora.CreateRequest) (*sora.Video, error)
	Retrieve(ctx context.Context, externalID string) (*sora.Video, error)
	Delete(ctx context.Context, externalID string) error
	Content(ctx context.Context, externalID, variant string) (io.ReadCloser, string, error)
}

// Options wires the manager's collaborators.
type Options struct {
	Store    domain.JobRepository
	Provider Provider
	Pricing  *pricing.Calculator
	// Cache keeps downloaded content; nil streams straight from the provider.
	Cache  *storage.FileStore
	Logger *zerolog.Logger
	Clock  func() time.Time
	// Concurrency bounds provider calls within one reconciliation pass.
	Concurrency int
}

// Manager drives the job lifecycle.
type Manager struct {
	store       domain.JobRepository
	provider    Provider
	pricing     *pricing.Calculator
	cache       *storage.FileStore
	logger      zerolog.Logger
	clock       func() time.Time
	concurrency int
}

// SubmitRequest carries a new generation request.
type SubmitRequest struct {
	Prompt          string
	Model           domain.Model
	Resolution      domain.Resolution
	DurationSeconds int
	ReferenceImage  *validate.Image
}

// Quote is a price estimate for one job configuration.
type Quote struct {
	Model           domain.Model      `json:"model"`
	Resolution      domain.Resolution `json:"resolution"`
	DurationSeconds int               `json:"duration_seconds"`
	RatePerSecond   float64           `json:"rate_per_second"`
	Cost            float64           `json:"cost"`
	Currency        string            `json:"currency"`
	Supported       bool              `json:"supported"`
}

// NewManager builds a Manager. Store and Provider are required.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("lifecycle: provider is required")
	}
	m := &Manager{
		store:       opts.Store,
		provider:    opts.Provider,
		pricing:     opts.Pricing,
		cache:       opts.Cache,
		logger:      zerolog.Nop(),
		clock:       opts.Clock,
		concurrency: opts.Concurrency,
	}
	if m.pricing == nil {
		m.pricing = pricing.Default()
	}
	if opts.Logger != nil {
		m.logger = opts.Logger.With().Str("component", "lifecycle").Logger()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.concurrency <= 0 {
		m.concurrency = defaultConcurrency
	}
	return m, nil
}

// Submit validates the request, dispatches it to the provider and records the
// accepted job as pending. No job is stored when dispatch fails.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if !m.provider.HasCredentials() {
		return nil, domain.ErrMissingCredentials
	}
	if err := validate.Prompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := validate.Parameters(req.Model, req.Resolution, req.DurationSeconds, m.pricing); err != nil {
		return nil, err
	}

	var reference string
	if req.ReferenceImage != nil {
		checked, err := validate.ImageFile(*req.ReferenceImage)
		if err != nil {
			return nil, err
		}
		reference = checked.DataURL()
	}

	video, err := m.provider.Create(ctx, sora.CreateRequest{
		Model:          string(req.Model),
		Prompt:         req.Prompt,
		Size:           string(req.Resolution),
		Seconds:        req.DurationSeconds,
		InputReference: reference,
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("model", string(req.Model)).Msg("dispatch failed")
		return nil, classifyDispatch(err)
	}

	now := m.clock().UTC()
	job, err := m.store.Create(ctx, &domain.Job{
		ExternalID:      video.ID,
		Name:            domain.DeriveName(req.Prompt, now),
		Prompt:          req.Prompt,
		Model:           req.Model,
		Resolution:      req.Resolution,
		DurationSeconds: req.DurationSeconds,
		Status:          domain.JobStatusPending,
		Cost:            m.pricing.Cost(req.Model, req.Resolution, req.DurationSeconds),
		CreatedAt:       now,
	})
	if err != nil {
		m.compensate(ctx, video.ID, err)
		return nil, fmt.Errorf("record job %s: %w", video.ID, err)
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("external_id", job.ExternalID).
		Str("model", string(job.Model)).
		Float64("cost", job.Cost).
		Msg("job submitted")
	return job, nil
}

// compensate deletes a provider job whose local record could not be written,
// so it does not keep rendering unseen.
func (m *Manager) compensate(ctx context.Context, externalID string, cause error) {
	m.logger.Error().Err(cause).Str("external_id", externalID).Msg("persist job after dispatch failed")
	if err := m.provider.Delete(context.WithoutCancel(ctx), externalID); err != nil {
		m.logger.Error().Err(err).Str("external_id", externalID).Msg("orphaned provider job left behind")
		return
	}
	m.logger.Warn().Str("external_id", externalID).Msg("provider job deleted after persist failure")
}

func classifyDispatch(err error) error {
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		return err
	case errors.Is(err, domain.ErrInvalidCredentials):
		return &domain.DispatchError{
			Message: "the provider rejected the configured API key",
			Err:     domain.ErrInvalidCredentials,
		}
	}
	if pe, ok := sora.AsProviderError(err); ok && pe.Message != "" {
		return &domain.DispatchError{Message: pe.Message, Err: err}
	}
	if _, ok := sora.AsProviderError(err); !ok && errors.Is(err, domain.ErrProviderUnavailable) {
		return fmt.Errorf("dispatch: %w", err)
	}
	return &domain.DispatchError{Message: "the provider did not accept the job", Err: err}
}

// Reconcile polls the provider for job and applies any forward status change.
// Terminal jobs are returned untouched. A job deleted in the meantime yields
// (nil, nil), even when the provider no longer knows it. Other provider
// failures leave the record as is; transport failures wrap
// domain.ErrProviderUnavailable and provider answers keep *sora.ProviderError.
func (m *Manager) Reconcile(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if job == nil || job.Status.Terminal() {
		return job, nil
	}

	video, err := m.provider.Retrieve(ctx, job.ExternalID)
	if err != nil {
		if _, getErr := m.store.Get(ctx, job.ID); errors.Is(getErr, domain.ErrNotFound) {
			m.logger.Debug().Str("job_id", job.ID).Msg("job removed before reconcile")
			return nil, nil
		}
		if _, ok := sora.AsProviderError(err); !ok && !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("retrieve %s: %w", job.ExternalID, err)
	}

	status := video.Status.Internal()
	if status == job.Status {
		return job, nil
	}

	updated, err := m.store.UpdateStatus(ctx, job.ID, domain.StatusUpdate{
		Status:       status,
		OutputURL:    video.OutputURL,
		ThumbnailURL: video.ThumbnailURL,
	})
	switch {
	case err == nil:
		m.logger.Info().
			Str("job_id", job.ID).
			Str("from", string(job.Status)).
			Str("to", string(updated.Status)).
			Msg("job status changed")
		return updated, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	case errors.Is(err, domain.ErrInvalidTransition):
		// Stale or out-of-order answer; keep what is stored.
		m.logger.Debug().
			Str("job_id", job.ID).
			Str("provider_status", string(video.Status)).
			Msg("ignored backward status")
		current, getErr := m.store.Get(ctx, job.ID)
		if errors.Is(getErr, domain.ErrNotFound) {
			return nil, nil
		}
		return current, getErr
	default:
		return nil, fmt.Errorf("update job %s: %w", job.ID, err)
	}
}

// ReconcileActive runs one reconciliation pass over every non-terminal job and
// returns the jobs whose status changed. Per-job failures are logged only.
func (m *Manager) ReconcileActive(ctx context.Context) ([]*domain.Job, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		changed []*domain.Job
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, job := range active {
		g.Go(func() error {
			updated, err := m.Reconcile(gctx, job)
			if err != nil {
				m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("reconcile failed; retrying next tick")
				return nil
			}
			if updated != nil && updated.Status != job.Status {
				mu.Lock()
				changed = append(changed, updated)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return changed, nil
}

// Refresh reconciles a single job on demand. Provider failures are logged and
// the stored job is returned.
func (m *Manager) Refresh(ctx context.Context, id string) (*domain.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := m.Reconcile(ctx, job)
	if err != nil {
		_, answered := sora.AsProviderError(err)
		if answered || errors.Is(err, domain.ErrProviderUnavailable) {
			m.logger.Warn().Err(err).Str("job_id", id).Msg("refresh left job unchanged")
			return job, nil
		}
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return updated, nil
}

// Remove deletes the local job. Provider side deletion is attempted first but
// its failure does not stop the local delete.
func (m *Manager) Remove(ctx context.Context, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.ExternalID != "" {
		if err := m.provider.Delete(ctx, job.ExternalID); err != nil {
			m.logger.Warn().Err(err).Str("job_id", id).Str("external_id", job.ExternalID).Msg("provider delete failed")
		}
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	if m.cache != nil {
		if err := m.cache.RemoveAll(id); err != nil {
			m.logger.Warn().Err(err).Str("job_id", id).Msg("drop cached content")
		}
	}
	m.logger.Info().Str("job_id", id).Msg("job removed")
	return nil
}

// Rename changes a job's display name.
func (m *Manager) Rename(ctx context.Context, id, name string) (*domain.Job, error) {
	if err := validate.Name(name); err != nil {
		return nil, err
	}
	return m.store.Rename(ctx, id, strings.TrimSpace(name))
}

// List returns every job, newest first.
func (m *Manager) List(ctx context.Context) ([]*domain.Job, error) {
	return m.store.List(ctx)
}

// Get returns one job.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Job, error) {
	return m.store.Get(ctx, id)
}

// Quote prices a configuration without submitting it.
func (m *Manager) Quote(model domain.Model, res domain.Resolution, durationSeconds int) Quote {
	rate, ok := m.pricing.Rate(model, res)
	return Quote{
		Model:           model,
		Resolution:      res,
		DurationSeconds: durationSeconds,
		RatePerSecond:   rate,
		Cost:            m.pricing.Cost(model, res, durationSeconds),
		Currency:        m.pricing.Table().Currency,
		Supported:       ok && domain.ValidDuration(durationSeconds),
	}
}

// Pricing exposes the rate table in use.
func (m *Manager) Pricing() *pricing.Calculator {
	return m.pricing
}

// ProviderConfigured reports whether submissions can be dispatched.
func (m *Manager) ProviderConfigured() bool {
	return m.provider.HasCredentials()
}
