package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sorastudio/internal/domain"
	"sorastudio/internal/infra"
	"sorastudio/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	db  infra.SQLExecutor
	now func() time.Time
}

// NewJobRepository creates a new job repository backed by PostgreSQL. db is
// normally an *infra.SQLRunner wrapping the pool.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db, now: time.Now}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	rec := prepareNew(job, r.now)
	row := r.db.QueryRow(ctx, sqlinline.QInsertVideoJob,
		rec.ID,
		rec.ExternalID,
		rec.Name,
		rec.Prompt,
		string(rec.Model),
		string(rec.Resolution),
		rec.DurationSeconds,
		string(rec.Status),
		rec.Cost,
		rec.CreatedAt,
	)
	out, err := scanJob(row)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, domain.ErrDuplicateExternalID
		}
		return nil, fmt.Errorf("insert video job: %w", err)
	}
	return out, nil
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, id string) (*domain.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.one(ctx, sqlinline.QSelectVideoJobByID, id)
}

// GetByExternalID fetches a job by the provider's identifier.
func (r *JobRepositoryPG) GetByExternalID(ctx context.Context, externalID string) (*domain.Job, error) {
	return r.one(ctx, sqlinline.QSelectVideoJobByExternalID, externalID)
}

func (r *JobRepositoryPG) List(ctx context.Context) ([]*domain.Job, error) {
	return r.many(ctx, sqlinline.QListVideoJobs)
}

func (r *JobRepositoryPG) ListActive(ctx context.Context) ([]*domain.Job, error) {
	return r.many(ctx, sqlinline.QListActiveVideoJobs)
}

// UpdateStatus moves a job forward. The row is only touched when its current
// status may transition to update.Status.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Job, error) {
	if !update.Status.Valid() {
		return nil, domain.ErrInvalidTransition
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	update = update.Normalize()

	row := r.db.QueryRow(ctx, sqlinline.QUpdateVideoJobStatus,
		id,
		string(update.Status),
		update.OutputURL,
		update.ThumbnailURL,
		predecessors(update.Status),
	)
	out, err := scanJob(row)
	if err == nil {
		return out, nil
	}
	if !infra.IsNoRows(err) {
		return nil, fmt.Errorf("update video job status: %w", err)
	}
	// Nothing matched: either the job is gone or the move is not forward.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrInvalidTransition
}

func (r *JobRepositoryPG) Rename(ctx context.Context, id, name string) (*domain.Job, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.one(ctx, sqlinline.QRenameVideoJob, id, name)
}

func (r *JobRepositoryPG) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteVideoJob, id)
	if err != nil {
		return fmt.Errorf("delete video job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) one(ctx context.Context, query string, args ...any) (*domain.Job, error) {
	job, err := scanJob(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositoryPG) many(ctx context.Context, query string) ([]*domain.Job, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job        domain.Job
		model      string
		resolution string
		status     string
	)
	if err := row.Scan(
		&job.ID,
		&job.ExternalID,
		&job.Name,
		&job.Prompt,
		&model,
		&resolution,
		&job.DurationSeconds,
		&status,
		&job.OutputURL,
		&job.ThumbnailURL,
		&job.Cost,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Model = domain.Model(model)
	job.Resolution = domain.Resolution(resolution)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
