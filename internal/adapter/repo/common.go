package repo

import (
	"time"

	"github.com/google/uuid"

	"sorastudio/internal/domain"
	"sorastudio/internal/validate"
)

var allStatuses = []domain.JobStatus{
	domain.JobStatusPending,
	domain.JobStatusProcessing,
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
}

// predecessors lists the statuses a job may currently hold to move to "to".
func predecessors(to domain.JobStatus) []string {
	var out []string
	for _, from := range allStatuses {
		if domain.CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// prepareNew copies job and fills the fields the store owns. The store always
// assigns the ID, and new jobs start pending with no output.
func prepareNew(job *domain.Job, now func() time.Time) domain.Job {
	rec := *job
	rec.ID = uuid.NewString()
	rec.Status = domain.JobStatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.CreatedAt
	rec.OutputURL = ""
	rec.ThumbnailURL = ""
	return rec
}

// checkName applies the job name rules every store enforces on rename.
func checkName(name string) error {
	return validate.Name(name)
}
