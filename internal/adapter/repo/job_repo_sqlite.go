package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sorastudio/internal/domain"
	"sorastudio/internal/infra"
)

// Fixed-width so that lexical order in SQLite matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = `id, external_id, name, prompt, model, resolution, duration_seconds,
    status, output_url, thumbnail_url, cost, created_at, updated_at`

// JobRepositorySQLite implements domain.JobRepository on a local SQLite file.
type JobRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobRepositorySQLite(db *sql.DB) *JobRepositorySQLite {
	return &JobRepositorySQLite{db: db, now: time.Now}
}

func (r *JobRepositorySQLite) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	rec := prepareNew(job, r.now)
	ts := formatSQLiteTime(rec.CreatedAt)
	err := retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `INSERT INTO video_jobs (`+jobColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?, ?)`,
			rec.ID,
			rec.ExternalID,
			rec.Name,
			rec.Prompt,
			string(rec.Model),
			string(rec.Resolution),
			rec.DurationSeconds,
			string(rec.Status),
			rec.Cost,
			ts,
			ts,
		)
		return err
	})
	if err != nil {
		if infra.IsSQLiteUniqueViolation(err) {
			return nil, domain.ErrDuplicateExternalID
		}
		return nil, fmt.Errorf("insert video job: %w", err)
	}
	return r.Get(ctx, rec.ID)
}

func (r *JobRepositorySQLite) Get(ctx context.Context, id string) (*domain.Job, error) {
	return r.one(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE id = ?`, id)
}

func (r *JobRepositorySQLite) GetByExternalID(ctx context.Context, externalID string) (*domain.Job, error) {
	return r.one(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE external_id = ?`, externalID)
}

func (r *JobRepositorySQLite) List(ctx context.Context) ([]*domain.Job, error) {
	return r.many(ctx, `SELECT `+jobColumns+` FROM video_jobs ORDER BY created_at DESC, id DESC`)
}

func (r *JobRepositorySQLite) ListActive(ctx context.Context) ([]*domain.Job, error) {
	return r.many(ctx, `SELECT `+jobColumns+` FROM video_jobs
WHERE status IN ('pending', 'processing')
ORDER BY created_at ASC, id ASC`)
}

func (r *JobRepositorySQLite) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Job, error) {
	update = update.Normalize()
	from := predecessors(update.Status)
	if len(from) == 0 {
		return nil, domain.ErrInvalidTransition
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args := []any{string(update.Status), update.OutputURL, update.ThumbnailURL, formatSQLiteTime(r.now()), id}
	for _, s := range from {
		args = append(args, s)
	}

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `UPDATE video_jobs
SET status = ?, output_url = ?, thumbnail_url = ?, updated_at = ?
WHERE id = ? AND status IN (`+placeholders+`)`, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update video job status: %w", err)
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrInvalidTransition
	}
	return job, nil
}

func (r *JobRepositorySQLite) Rename(ctx context.Context, id, name string) (*domain.Job, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `UPDATE video_jobs SET name = ?, updated_at = ? WHERE id = ?`,
			name, formatSQLiteTime(r.now()), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rename video job: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *JobRepositorySQLite) Delete(ctx context.Context, id string) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM video_jobs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete video job: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositorySQLite) one(ctx context.Context, query string, args ...any) (*domain.Job, error) {
	job, err := scanSQLiteJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *JobRepositorySQLite) many(ctx context.Context, query string) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row sqliteScanner) (*domain.Job, error) {
	var (
		job                  domain.Job
		model, resolution    string
		status               string
		createdAt, updatedAt string
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
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	job.Model = domain.Model(model)
	job.Resolution = domain.Resolution(resolution)
	job.Status = domain.JobStatus(status)

	var err error
	if job.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !infra.IsSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

var _ domain.JobRepository = (*JobRepositorySQLite)(nil)
