package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"sorastudio/internal/adapter/repo"
	"sorastudio/internal/domain"
	"sorastudio/internal/providers/sora"
)

type fakeProvider struct {
	mu sync.Mutex

	noCredentials bool
	createErr     error
	retrieveErr   map[string]error
	deleteErr     error
	statuses      map[string]sora.Status
	content       []byte

	createCalls   int
	retrieveCalls int
	deleteCalls   []string
	contentCalls  int
	lastCreate    sora.CreateRequest
	seq           int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		statuses:    map[string]sora.Status{},
		retrieveErr: map[string]error{},
		content:     []byte("mp4"),
	}
}

func (f *fakeProvider) HasCredentials() bool {
	return !f.noCredentials
}

func (f *fakeProvider) Create(_ context.Context, req sora.CreateRequest) (*sora.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	id := fmt.Sprintf("video_%d", f.seq)
	f.statuses[id] = sora.StatusQueued
	return &sora.Video{ID: id, Status: sora.StatusQueued}, nil
}

func (f *fakeProvider) Retrieve(_ context.Context, externalID string) (*sora.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if err := f.retrieveErr[externalID]; err != nil {
		return nil, err
	}
	status, ok := f.statuses[externalID]
	if !ok {
		return nil, &sora.ProviderError{StatusCode: 404, Code: "not_found", Message: "Video not found"}
	}
	v := &sora.Video{ID: externalID, Status: status}
	if v.Status == sora.StatusCompleted {
		v.OutputURL = "https://cdn.example/" + externalID + ".mp4"
		v.ThumbnailURL = "https://cdn.example/" + externalID + ".webp"
	}
	return v, nil
}

func (f *fakeProvider) Delete(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, externalID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.statuses, externalID)
	return nil
}

func (f *fakeProvider) Content(_ context.Context, _ string, _ string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentCalls++
	return io.NopCloser(bytes.NewReader(f.content)), "video/mp4", nil
}

func (f *fakeProvider) setStatus(externalID string, status sora.Status) {
	f.mu.Lock()
	f.statuses[externalID] = status
	f.mu.Unlock()
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// countingStore records status writes and can fail Create.
type countingStore struct {
	domain.JobRepository
	mu          sync.Mutex
	updateCalls int
	createErr   error
}

func (s *countingStore) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.JobRepository.Create(ctx, job)
}

func (s *countingStore) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Job, error) {
	s.mu.Lock()
	s.updateCalls++
	s.mu.Unlock()
	return s.JobRepository.UpdateStatus(ctx, id, update)
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

// now advances by one second per call so successive writes get distinct times.
func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	manager  *Manager
	provider *fakeProvider
	store    *countingStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	provider := newFakeProvider()
	store := &countingStore{JobRepository: repo.NewJobRepositoryMemory()}
	clock := &stepClock{t: time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)}
	manager, err := NewManager(Options{
		Store:    store,
		Provider: provider,
		Clock:    clock.now,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return &harness{manager: manager, provider: provider, store: store}
}

func (h *harness) submit(t *testing.T) *domain.Job {
	t.Helper()
	job, err := h.manager.Submit(context.Background(), SubmitRequest{
		Prompt:          "A paper boat drifting down a rainy street",
		Model:           domain.ModelSora2,
		Resolution:      domain.Resolution1280x720,
		DurationSeconds: 8,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	return job
}
