package domain

import "context"

// JobRepository defines persistence for video jobs.
type JobRepository interface {
	// Create assigns the ID and timestamps and stores the job.
	Create(ctx context.Context, job *Job) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	GetByExternalID(ctx context.Context, externalID string) (*Job, error)
	// List returns every job, newest first.
	List(ctx context.Context) ([]*Job, error)
	// ListActive returns jobs that are not in a terminal state.
	ListActive(ctx context.Context) ([]*Job, error)
	// UpdateStatus applies a forward-only status change.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*Job, error)
	Rename(ctx context.Context, id, name string) (*Job, error)
	Delete(ctx context.Context, id string) error
}
