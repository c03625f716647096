package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sorastudio/internal/adapter/repo"
	"sorastudio/internal/domain"
	"sorastudio/internal/http/handlers"
	"sorastudio/internal/lifecycle"
	"sorastudio/internal/middleware"
	"sorastudio/internal/providers/sora"
	"sorastudio/internal/realtime"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// fakeVideoAPI mimics the provider's /videos endpoints in memory.
type fakeVideoAPI struct {
	mu        sync.Mutex
	seq       int
	statuses  map[string]string
	failWith  *http.Response
	failErr   error
	lastInput map[string]any
}

func newFakeVideoAPI() *fakeVideoAPI {
	return &fakeVideoAPI{statuses: map[string]string{}}
}

func (f *fakeVideoAPI) roundTrip(r *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return nil, f.failErr
	}
	if f.failWith != nil {
		return f.failWith, nil
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	switch {
	case r.Method == http.MethodPost && path == "/videos":
		f.lastInput = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&f.lastInput)
		f.seq++
		id := fmt.Sprintf("video_%d", f.seq)
		f.statuses[id] = "queued"
		return jsonResponse(http.StatusOK, fmt.Sprintf(`{"id":%q,"status":"queued"}`, id)), nil
	case strings.HasSuffix(path, "/content"):
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"video/mp4"}},
			Body:       io.NopCloser(strings.NewReader("mp4-bytes")),
		}, nil
	case strings.HasPrefix(path, "/videos/"):
		id := strings.TrimPrefix(path, "/videos/")
		status, ok := f.statuses[id]
		if !ok {
			return jsonResponse(http.StatusNotFound, `{"error":{"code":"not_found","message":"no such video"}}`), nil
		}
		if r.Method == http.MethodDelete {
			delete(f.statuses, id)
			return jsonResponse(http.StatusOK, `{"deleted":true}`), nil
		}
		return jsonResponse(http.StatusOK, fmt.Sprintf(`{"id":%q,"status":%q,"progress":50}`, id, status)), nil
	}
	return jsonResponse(http.StatusNotFound, `{"error":{"message":"unknown route"}}`), nil
}

func (f *fakeVideoAPI) set(id, status string) {
	f.mu.Lock()
	f.statuses[id] = status
	f.mu.Unlock()
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type testServer struct {
	handler http.Handler
	api     *fakeVideoAPI
}

func newTestServer(t *testing.T, apiKey string, opts Options) *testServer {
	t.Helper()
	api := newFakeVideoAPI()
	client := sora.NewClient(sora.Options{
		APIKey:     apiKey,
		BaseURL:    "https://api.test/v1",
		HTTPClient: &http.Client{Transport: roundTripFunc(api.roundTrip)},
	})
	logger := zerolog.Nop()
	manager, err := lifecycle.NewManager(lifecycle.Options{
		Store:    repo.NewJobRepositoryMemory(),
		Provider: client,
		Logger:   &logger,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	reconciler := lifecycle.NewReconciler(manager, time.Hour, logger)
	t.Cleanup(func() { reconciler.Shutdown(context.Background()) })
	hub := realtime.NewHub(logger)
	app := handlers.NewApp(manager, reconciler, hub, logger, nil)
	opts.Logger = logger
	return &testServer{handler: NewRouter(app, opts), api: api}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) submit(t *testing.T, payload string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/v1/videos", strings.NewReader(payload), "application/json")
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) domain.Job {
	t.Helper()
	var job domain.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job %s: %v", rec.Body.String(), err)
	}
	return job
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error %s: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

const validSubmit = `{"prompt":"A lighthouse in a storm","model":"sora-2","resolution":"1280x720","duration_seconds":8}`

func TestHealth(t *testing.T) {
	s := newTestServer(t, "", Options{})
	rec := s.do(t, http.MethodGet, "/v1/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"provider_configured":false`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestSubmitListGet(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{})

	rec := s.submit(t, validSubmit)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d body=%s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if job.Status != domain.JobStatusPending || job.ExternalID != "video_1" || job.Cost != 0.8 {
		t.Fatalf("job = %+v", job)
	}

	rec = s.do(t, http.MethodGet, "/v1/videos", nil, "")
	var list struct {
		Videos []domain.Job `json:"videos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Videos) != 1 || list.Videos[0].ID != job.ID {
		t.Fatalf("list = %+v", list.Videos)
	}

	rec = s.do(t, http.MethodGet, "/v1/videos/"+job.ID, nil, "")
	if rec.Code != http.StatusOK || decodeJob(t, rec).ID != job.ID {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/v1/videos/missing", nil, "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("get missing = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		payload  string
		failWith *http.Response
		failErr  error
		status   int
		code     string
	}{
		{
			name:    "missing credentials",
			payload: `{"prompt":""}`,
			status:  http.StatusServiceUnavailable,
			code:    "missing_credentials",
		},
		{
			name:    "unsupported resolution",
			apiKey:  "sk-test",
			payload: `{"prompt":"x","model":"sora-2","resolution":"1792x1024","duration_seconds":8}`,
			status:  http.StatusBadRequest,
			code:    "invalid_parameters",
		},
		{
			name:    "prompt too long",
			apiKey:  "sk-test",
			payload: `{"prompt":"` + strings.Repeat("p", 2001) + `","model":"sora-2","resolution":"1280x720","duration_seconds":8}`,
			status:  http.StatusBadRequest,
			code:    "prompt_out_of_bounds",
		},
		{
			name:    "gif reference",
			apiKey:  "sk-test",
			payload: `{"prompt":"x","model":"sora-2","resolution":"1280x720","duration_seconds":8,"reference_image":{"mime_type":"image/gif","data":"R0lGODlh"}}`,
			status:  http.StatusBadRequest,
			code:    "invalid_format",
		},
		{
			name:     "invalid key",
			apiKey:   "sk-bad",
			payload:  validSubmit,
			failWith: jsonResponse(http.StatusUnauthorized, `{"error":{"code":"invalid_api_key","message":"Incorrect API key"}}`),
			status:   http.StatusBadGateway,
			code:     "invalid_credentials",
		},
		{
			name:     "provider rejection",
			apiKey:   "sk-test",
			payload:  validSubmit,
			failWith: jsonResponse(http.StatusBadRequest, `{"error":{"code":"moderation_blocked","message":"Prompt blocked"}}`),
			status:   http.StatusBadGateway,
			code:     "provider_rejected",
		},
		{
			name:    "provider unreachable",
			apiKey:  "sk-test",
			payload: validSubmit,
			failErr: errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
			status:  http.StatusBadGateway,
			code:    "provider_unavailable",
		},
		{
			name:    "malformed json",
			apiKey:  "sk-test",
			payload: `{`,
			status:  http.StatusBadRequest,
			code:    "bad_request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, tc.apiKey, Options{})
			s.api.failWith = tc.failWith
			s.api.failErr = tc.failErr
			rec := s.submit(t, tc.payload)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestSubmitTransportFailureHidesInternals(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{})
	s.api.failErr = errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	rec := s.submit(t, validSubmit)
	if strings.Contains(rec.Body.String(), "dial") {
		t.Fatalf("body leaks transport detail: %s", rec.Body.String())
	}
}

func TestSubmitRejectionKeepsProviderMessage(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{})
	s.api.failWith = jsonResponse(http.StatusBadRequest, `{"error":{"code":"moderation_blocked","message":"Prompt blocked"}}`)
	rec := s.submit(t, validSubmit)
	if !strings.Contains(rec.Body.String(), `"message":"Prompt blocked"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestSubmitMultipartReferenceImage(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{})

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 640, 360))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("prompt", "Make it move")
	_ = mw.WriteField("model", "sora-2")
	_ = mw.WriteField("resolution", "1280x720")
	_ = mw.WriteField("duration_seconds", "4")
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="reference_image"; filename="ref.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(img.Bytes())
	_ = mw.Close()

	rec := s.do(t, http.MethodPost, "/v1/videos", &body, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	ref, _ := s.api.lastInput["input_reference"].(string)
	if !strings.HasPrefix(ref, "data:image/png;base64,") {
		t.Fatalf("input_reference = %.40q", ref)
	}
	if s.api.lastInput["seconds"] != "4" {
		t.Fatalf("seconds = %v", s.api.lastInput["seconds"])
	}
}

func TestRenameDeleteRefreshContent(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{})
	job := decodeJob(t, s.submit(t, validSubmit))
	base := "/v1/videos/" + job.ID

	rec := s.do(t, http.MethodPatch, base, strings.NewReader(`{"name":""}`), "application/json")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_name" {
		t.Fatalf("rename empty = %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPatch, base, strings.NewReader(`{"name":"Storm cut"}`), "application/json")
	if rec.Code != http.StatusOK || decodeJob(t, rec).Name != "Storm cut" {
		t.Fatalf("rename = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, base+"/content", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("content before completion = %d", rec.Code)
	}

	s.api.set(job.ExternalID, "completed")
	rec = s.do(t, http.MethodPost, base+"/refresh", nil, "")
	refreshed := decodeJob(t, rec)
	if rec.Code != http.StatusOK || refreshed.Status != domain.JobStatusCompleted || refreshed.OutputURL == "" {
		t.Fatalf("refresh = %d %+v", rec.Code, refreshed)
	}

	rec = s.do(t, http.MethodGet, base+"/content", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "mp4-bytes" || rec.Header().Get("Content-Type") != "video/mp4" {
		t.Fatalf("content = %d %q %s", rec.Code, rec.Body.String(), rec.Header().Get("Content-Type"))
	}

	rec = s.do(t, http.MethodDelete, base, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, base, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rec.Code)
	}
}

func TestPricing(t *testing.T) {
	s := newTestServer(t, "", Options{})

	rec := s.do(t, http.MethodGet, "/v1/pricing", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sora-2-pro"`) {
		t.Fatalf("table = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v1/pricing?model=sora-2-pro&resolution=1024x1792&duration=4", nil, "")
	var quote lifecycle.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.Cost != 2.0 || !quote.Supported {
		t.Fatalf("quote = %+v", quote)
	}

	rec = s.do(t, http.MethodGet, "/v1/pricing?model=sora-2&duration=x", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad duration = %d", rec.Code)
	}
}

func TestBearerAuthWhenSecretSet(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{JWTSecret: "secret"})

	if rec := s.do(t, http.MethodGet, "/v1/videos", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/healthz", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	token, err := middleware.SignToken("secret", "ops", time.Minute)
	if err != nil {
		t.Fatalf("SignToken returned error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated list = %d", rec.Code)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	s := newTestServer(t, "sk-test", Options{SubmitPerMinute: 1})
	if rec := s.submit(t, validSubmit); rec.Code != http.StatusCreated {
		t.Fatalf("first submit = %d", rec.Code)
	}
	if rec := s.submit(t, validSubmit); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/videos", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("list after limit = %d", rec.Code)
	}
}

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	s := newTestServer(t, "", Options{})
	rec := s.do(t, http.MethodGet, "/v1/openapi.json", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode openapi.json: %v", err)
	}

	routes, ok := s.handler.(chi.Routes)
	if !ok {
		t.Fatalf("router is %T, want chi.Routes", s.handler)
	}
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route == "/v1/openapi.json" || route == "/v1/docs" {
			return nil
		}
		route = strings.TrimSuffix(route, "/")
		ops, found := doc.Paths[route]
		if !found {
			return fmt.Errorf("path %s is not documented", route)
		}
		if _, found := ops[strings.ToLower(method)]; !found {
			return fmt.Errorf("%s %s is not documented", method, route)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	docs := s.do(t, http.MethodGet, "/v1/docs", nil, "")
	if !strings.Contains(docs.Body.String(), `spec-url="/v1/openapi.json"`) {
		t.Fatalf("docs page does not load openapi.json")
	}
}
