package sora

import "sorastudio/internal/domain"

// Status is the provider's vocabulary for a video's progress.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Internal maps a provider status onto the job lifecycle. Anything the
// provider adds later lands on pending so state never advances on input we
// do not understand.
func (s Status) Internal() domain.JobStatus {
	switch s {
	case StatusQueued:
		return domain.JobStatusPending
	case StatusInProgress:
		return domain.JobStatusProcessing
	case StatusCompleted:
		return domain.JobStatusCompleted
	case StatusFailed:
		return domain.JobStatusFailed
	default:
		return domain.JobStatusPending
	}
}
