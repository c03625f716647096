package domain

import "time"

// Model enumerates the provider model variants a job can target.
type Model string

const (
	ModelSora2    Model = "sora-2"
	ModelSora2Pro Model = "sora-2-pro"
)

// Models lists every supported model in display order.
var Models = []Model{ModelSora2, ModelSora2Pro}

// Valid reports whether m is a known model.
func (m Model) Valid() bool {
	switch m {
	case ModelSora2, ModelSora2Pro:
		return true
	default:
		return false
	}
}

// Resolution is a WIDTHxHEIGHT frame size accepted by the provider.
type Resolution string

const (
	Resolution1280x720  Resolution = "1280x720"
	Resolution720x1280  Resolution = "720x1280"
	Resolution1024x1792 Resolution = "1024x1792"
	Resolution1792x1024 Resolution = "1792x1024"
)

// Durations lists the clip lengths, in seconds, the provider accepts.
var Durations = []int{4, 8, 12}

// ValidDuration reports whether seconds is one of Durations.
func ValidDuration(seconds int) bool {
	for _, d := range Durations {
		if d == seconds {
			return true
		}
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.rank() > 0
}

func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 1
	case JobStatusProcessing:
		return 2
	case JobStatusCompleted, JobStatusFailed:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether a job may move from one status to another.
// Moves only go forward; a poll may skip processing entirely.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	return to.rank() > from.rank()
}

// Job is one video generation request and its tracked outcome.
type Job struct {
	ID              string     `json:"id"`
	ExternalID      string     `json:"external_id"`
	Name            string     `json:"name"`
	Prompt          string     `json:"prompt"`
	Model           Model      `json:"model"`
	Resolution      Resolution `json:"resolution"`
	DurationSeconds int        `json:"duration_seconds"`
	Status          JobStatus  `json:"status"`
	OutputURL       string     `json:"output_url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	Cost            float64    `json:"cost"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StatusUpdate carries a status change observed on the provider side.
// The URLs are only kept when Status is completed.
type StatusUpdate struct {
	Status       JobStatus
	OutputURL    string
	ThumbnailURL string
}

// Normalize drops URLs that must not accompany a non-completed status.
func (u StatusUpdate) Normalize() StatusUpdate {
	if u.Status != JobStatusCompleted {
		u.OutputURL = ""
		u.ThumbnailURL = ""
	}
	return u
}
