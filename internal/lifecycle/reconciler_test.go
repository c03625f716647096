package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sorastudio/internal/domain"
	"sorastudio/internal/providers/sora"
)

func TestReconcilerRunsOnlyWhileObserved(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.manager, time.Hour, zerolog.Nop())

	if r.Running() {
		t.Fatal("reconciler running before any observer")
	}

	releaseA := r.Observe()
	releaseB := r.Observe()
	if !r.Running() || r.Observers() != 2 {
		t.Fatalf("running=%v observers=%d, want running with 2", r.Running(), r.Observers())
	}

	releaseA()
	releaseA()
	if !r.Running() || r.Observers() != 1 {
		t.Fatalf("running=%v observers=%d after one release", r.Running(), r.Observers())
	}

	releaseB()
	if r.Running() || r.Observers() != 0 {
		t.Fatalf("running=%v observers=%d after last release", r.Running(), r.Observers())
	}

	release := r.Observe()
	if !r.Running() {
		t.Fatal("reconciler did not restart for a new observer")
	}
	r.Shutdown(context.Background())
	if r.Running() {
		t.Fatal("reconciler still running after Shutdown")
	}
	release()
	if r.Observers() != 0 {
		t.Fatalf("observers = %d after Shutdown and release", r.Observers())
	}
}

func TestReconcilerTickNotifiesListeners(t *testing.T) {
	h := newHarness(t)
	job := h.submit(t)
	h.provider.setStatus(job.ExternalID, sora.StatusInProgress)

	r := NewReconciler(h.manager, time.Hour, zerolog.Nop())
	var got [][]*domain.Job
	remove := r.OnTick(func(jobs []*domain.Job) { got = append(got, jobs) })

	r.Tick(context.Background())
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Status != domain.JobStatusProcessing {
		t.Fatalf("listener received %+v", got)
	}

	remove()
	r.Tick(context.Background())
	if len(got) != 1 {
		t.Fatalf("removed listener still called: %d", len(got))
	}
}
