package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"sorastudio/internal/domain"
)

// JobRepositoryMemory keeps jobs in process memory. It backs tests and the
// "memory" database driver.
type JobRepositoryMemory struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	byExt map[string]string
	now   func() time.Time
}

func NewJobRepositoryMemory() *JobRepositoryMemory {
	return &JobRepositoryMemory{
		jobs:  make(map[string]*domain.Job),
		byExt: make(map[string]string),
		now:   time.Now,
	}
}

func (r *JobRepositoryMemory) Create(_ context.Context, job *domain.Job) (*domain.Job, error) {
	rec := prepareNew(job, r.now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byExt[rec.ExternalID]; ok {
		return nil, domain.ErrDuplicateExternalID
	}
	r.jobs[rec.ID] = &rec
	r.byExt[rec.ExternalID] = rec.ID
	out := rec
	return &out, nil
}

func (r *JobRepositoryMemory) Get(_ context.Context, id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *job
	return &out, nil
}

func (r *JobRepositoryMemory) GetByExternalID(ctx context.Context, externalID string) (*domain.Job, error) {
	r.mu.RLock()
	id, ok := r.byExt[externalID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *JobRepositoryMemory) List(_ context.Context) ([]*domain.Job, error) {
	jobs := r.snapshot(func(*domain.Job) bool { return true })
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *JobRepositoryMemory) ListActive(_ context.Context) ([]*domain.Job, error) {
	jobs := r.snapshot(func(j *domain.Job) bool { return !j.Status.Terminal() })
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *JobRepositoryMemory) UpdateStatus(_ context.Context, id string, update domain.StatusUpdate) (*domain.Job, error) {
	update = update.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(job.Status, update.Status) {
		return nil, domain.ErrInvalidTransition
	}
	job.Status = update.Status
	job.OutputURL = update.OutputURL
	job.ThumbnailURL = update.ThumbnailURL
	job.UpdatedAt = r.now().UTC()
	out := *job
	return &out, nil
}

func (r *JobRepositoryMemory) Rename(_ context.Context, id, name string) (*domain.Job, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job.Name = name
	job.UpdatedAt = r.now().UTC()
	out := *job
	return &out, nil
}

func (r *JobRepositoryMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byExt, job.ExternalID)
	delete(r.jobs, id)
	return nil
}

func (r *JobRepositoryMemory) snapshot(keep func(*domain.Job) bool) []*domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if keep(job) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
