package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sorastudio/internal/domain"
	"sorastudio/internal/infra"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time {
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type storeCase struct {
	repo  domain.JobRepository
	clock *fixedClock
}

// stores returns each non-Postgres implementation with its own clock.
func stores(t *testing.T) map[string]storeCase {
	t.Helper()

	out := map[string]storeCase{}

	memClock := &fixedClock{t: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)}
	mem := NewJobRepositoryMemory()
	mem.now = memClock.now
	out["memory"] = storeCase{repo: mem, clock: memClock}

	db, err := infra.OpenSQLite(context.Background(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sqlClock := &fixedClock{t: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)}
	lite := NewJobRepositorySQLite(db.DB)
	lite.now = sqlClock.now
	out["sqlite"] = storeCase{repo: lite, clock: sqlClock}

	return out
}

func newJob(externalID string) *domain.Job {
	return &domain.Job{
		ExternalID:      externalID,
		Name:            "sora_test",
		Prompt:          "a cat surfing",
		Model:           domain.ModelSora2,
		Resolution:      domain.Resolution1280x720,
		DurationSeconds: 8,
		Cost:            0.8,
	}
}

func TestJobRepositoryCreateAssignsIdentity(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.repo.Create(ctx, newJob("video_1"))
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
			if created.ID == "" {
				t.Fatal("expected generated ID")
			}
			if created.Status != domain.JobStatusPending {
				t.Fatalf("status = %q, want pending", created.Status)
			}
			if !created.CreatedAt.Equal(s.clock.t) || !created.UpdatedAt.Equal(created.CreatedAt) {
				t.Fatalf("timestamps = %s/%s, want %s", created.CreatedAt, created.UpdatedAt, s.clock.t)
			}

			byExt, err := s.repo.GetByExternalID(ctx, "video_1")
			if err != nil {
				t.Fatalf("GetByExternalID returned error: %v", err)
			}
			if byExt.ID != created.ID || byExt.Cost != 0.8 {
				t.Fatalf("GetByExternalID = %+v", byExt)
			}
		})
	}
}

func TestJobRepositoryRejectsDuplicateExternalID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.repo.Create(ctx, newJob("video_dup")); err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
			if _, err := s.repo.Create(ctx, newJob("video_dup")); !errors.Is(err, domain.ErrDuplicateExternalID) {
				t.Fatalf("second Create err = %v, want ErrDuplicateExternalID", err)
			}
		})
	}
}

func TestJobRepositoryUpdateStatusIsForwardOnly(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job, err := s.repo.Create(ctx, newJob("video_fwd"))
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			s.clock.advance(time.Second)
			processing, err := s.repo.UpdateStatus(ctx, job.ID, domain.StatusUpdate{
				Status:    domain.JobStatusProcessing,
				OutputURL: "https://ignored.example/video.mp4",
			})
			if err != nil {
				t.Fatalf("UpdateStatus(processing) returned error: %v", err)
			}
			if processing.OutputURL != "" {
				t.Fatalf("OutputURL = %q, want empty while processing", processing.OutputURL)
			}
			if !processing.UpdatedAt.After(job.UpdatedAt) {
				t.Fatalf("UpdatedAt not advanced: %s", processing.UpdatedAt)
			}

			if _, err := s.repo.UpdateStatus(ctx, job.ID, domain.StatusUpdate{Status: domain.JobStatusPending}); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("backward update err = %v, want ErrInvalidTransition", err)
			}
			if _, err := s.repo.UpdateStatus(ctx, job.ID, domain.StatusUpdate{Status: domain.JobStatusProcessing}); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("repeat update err = %v, want ErrInvalidTransition", err)
			}

			completed, err := s.repo.UpdateStatus(ctx, job.ID, domain.StatusUpdate{
				Status:       domain.JobStatusCompleted,
				OutputURL:    "https://cdn.example/v.mp4",
				ThumbnailURL: "https://cdn.example/v.webp",
			})
			if err != nil {
				t.Fatalf("UpdateStatus(completed) returned error: %v", err)
			}
			if completed.OutputURL != "https://cdn.example/v.mp4" || completed.ThumbnailURL != "https://cdn.example/v.webp" {
				t.Fatalf("completed URLs = %q/%q", completed.OutputURL, completed.ThumbnailURL)
			}

			if _, err := s.repo.UpdateStatus(ctx, job.ID, domain.StatusUpdate{Status: domain.JobStatusFailed}); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("terminal update err = %v, want ErrInvalidTransition", err)
			}
			got, _ := s.repo.Get(ctx, job.ID)
			if got.Status != domain.JobStatusCompleted {
				t.Fatalf("status = %q after rejected update, want completed", got.Status)
			}
		})
	}
}

func TestJobRepositoryMissingJob(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const id = "6fe62992-02b6-41a4-8829-2b9f384182d0"
			if _, err := s.repo.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("Get err = %v, want ErrNotFound", err)
			}
			if _, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpdate{Status: domain.JobStatusProcessing}); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("UpdateStatus err = %v, want ErrNotFound", err)
			}
			if _, err := s.repo.Rename(ctx, id, "x"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("Rename err = %v, want ErrNotFound", err)
			}
			if err := s.repo.Delete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("Delete err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestJobRepositoryListOrdering(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for _, ext := range []string{"video_a", "video_b", "video_c"} {
				job, err := s.repo.Create(ctx, newJob(ext))
				if err != nil {
					t.Fatalf("Create returned error: %v", err)
				}
				ids = append(ids, job.ID)
				s.clock.advance(time.Minute)
			}
			if _, err := s.repo.UpdateStatus(ctx, ids[1], domain.StatusUpdate{Status: domain.JobStatusFailed}); err != nil {
				t.Fatalf("UpdateStatus returned error: %v", err)
			}

			all, err := s.repo.List(ctx)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
				t.Fatalf("List order = %v", jobIDs(all))
			}

			active, err := s.repo.ListActive(ctx)
			if err != nil {
				t.Fatalf("ListActive returned error: %v", err)
			}
			if len(active) != 2 || active[0].ID != ids[0] || active[1].ID != ids[2] {
				t.Fatalf("ListActive = %v", jobIDs(active))
			}
		})
	}
}

func TestJobRepositoryRenameAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job, err := s.repo.Create(ctx, newJob("video_rn"))
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			renamed, err := s.repo.Rename(ctx, job.ID, "beach day")
			if err != nil {
				t.Fatalf("Rename returned error: %v", err)
			}
			if renamed.Name != "beach day" || renamed.Status != job.Status {
				t.Fatalf("Rename = %+v", renamed)
			}

			if err := s.repo.Delete(ctx, job.ID); err != nil {
				t.Fatalf("Delete returned error: %v", err)
			}
			if _, err := s.repo.GetByExternalID(ctx, "video_rn"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("GetByExternalID after delete err = %v", err)
			}
			if _, err := s.repo.Create(ctx, newJob("video_rn")); err != nil {
				t.Fatalf("re-Create after delete returned error: %v", err)
			}
		})
	}
}

func TestJobRepositoryRenameEnforcesNameRules(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job, err := s.repo.Create(ctx, newJob("video_name"))
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			for _, bad := range []string{"", "   ", strings.Repeat("x", domain.MaxNameLength+1)} {
				_, err := s.repo.Rename(ctx, job.ID, bad)
				ve, ok := domain.IsValidation(err)
				if !ok || ve.Reason != domain.ReasonInvalidName {
					t.Fatalf("Rename(%d chars) err = %v, want invalid_name", len(bad), err)
				}
			}
			if _, err := s.repo.Rename(ctx, job.ID, strings.Repeat("é", domain.MaxNameLength)); err != nil {
				t.Fatalf("Rename at the limit returned error: %v", err)
			}

			got, err := s.repo.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got.Name != strings.Repeat("é", domain.MaxNameLength) {
				t.Fatalf("Name = %q after rejected renames", got.Name)
			}
		})
	}
}

func TestJobRepositoryCreateIgnoresCallerID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := newJob("video_id_1")
			first.ID = "fixed"
			a, err := s.repo.Create(ctx, first)
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
			if a.ID == "fixed" {
				t.Fatal("Create kept the caller-supplied ID")
			}

			second := newJob("video_id_2")
			second.ID = "fixed"
			b, err := s.repo.Create(ctx, second)
			if err != nil {
				t.Fatalf("second Create with a reused ID returned error: %v", err)
			}
			if b.ID == a.ID {
				t.Fatalf("both jobs got ID %q", a.ID)
			}
			if _, err := s.repo.Get(ctx, a.ID); err != nil {
				t.Fatalf("Get(first) returned error: %v", err)
			}
		})
	}
}

func TestPredecessors(t *testing.T) {
	if got := predecessors(domain.JobStatusPending); len(got) != 0 {
		t.Fatalf("predecessors(pending) = %v, want none", got)
	}
	got := predecessors(domain.JobStatusCompleted)
	if len(got) != 2 || got[0] != "pending" || got[1] != "processing" {
		t.Fatalf("predecessors(completed) = %v", got)
	}
}

func jobIDs(jobs []*domain.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
