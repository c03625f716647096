package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sorastudio/internal/domain"
	"sorastudio/internal/lifecycle"
	"sorastudio/internal/pricing"
)

// apiError is the error envelope returned by the API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Code, e.Message)
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string, timeoutSeconds int) *apiClient {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

type submitParams struct {
	Prompt          string
	Model           string
	Resolution      string
	DurationSeconds int
	ImagePath       string
}

func (c *apiClient) List(ctx context.Context) ([]*domain.Job, error) {
	var out struct {
		Videos []*domain.Job `json:"videos"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/videos", nil, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

func (c *apiClient) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.doJSON(ctx, http.MethodGet, "/v1/videos/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) Refresh(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.doJSON(ctx, http.MethodPost, "/v1/videos/"+url.PathEscape(id)+"/refresh", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) Rename(ctx context.Context, id, name string) (*domain.Job, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/videos/"+url.PathEscape(id), jsonBody(body), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/videos/"+url.PathEscape(id), nil, nil)
}

// Submit posts JSON, or multipart when a reference image is attached.
func (c *apiClient) Submit(ctx context.Context, p submitParams) (*domain.Job, error) {
	var job domain.Job
	if p.ImagePath == "" {
		body, err := json.Marshal(map[string]any{
			"prompt":           p.Prompt,
			"model":            p.Model,
			"resolution":       p.Resolution,
			"duration_seconds": p.DurationSeconds,
		})
		if err != nil {
			return nil, err
		}
		if err := c.doJSON(ctx, http.MethodPost, "/v1/videos", jsonBody(body), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}

	payload, contentType, err := multipartSubmit(p)
	if err != nil {
		return nil, err
	}
	req := &requestBody{reader: payload, contentType: contentType}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/videos", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) Quote(ctx context.Context, model, resolution string, seconds int) (*lifecycle.Quote, error) {
	q := url.Values{}
	q.Set("model", model)
	q.Set("resolution", resolution)
	q.Set("duration", strconv.Itoa(seconds))
	var quote lifecycle.Quote
	if err := c.doJSON(ctx, http.MethodGet, "/v1/pricing?"+q.Encode(), nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *apiClient) Rates(ctx context.Context) (*pricing.Table, error) {
	var table pricing.Table
	if err := c.doJSON(ctx, http.MethodGet, "/v1/pricing", nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// Download streams a job's content into w and returns the byte count.
func (c *apiClient) Download(ctx context.Context, id, variant string, w io.Writer) (int64, error) {
	path := "/v1/videos/" + url.PathEscape(id) + "/content"
	if variant != "" {
		path += "?variant=" + url.QueryEscape(variant)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// watchURL converts the base URL to the websocket endpoint.
func (c *apiClient) watchURL() (string, error) {
	u, err := url.Parse(c.base + "/v1/videos/watch")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *apiClient) authHeader() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(b []byte) *requestBody {
	return &requestBody{reader: bytes.NewReader(b), contentType: "application/json"}
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body *requestBody, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body *requestBody) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = body.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header = c.authHeader()
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Code != "" {
		return &apiError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func multipartSubmit(p submitParams) (io.Reader, string, error) {
	data, err := os.ReadFile(p.ImagePath)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"prompt":           p.Prompt,
		"model":            p.Model,
		"resolution":       p.Resolution,
		"duration_seconds": strconv.Itoa(p.DurationSeconds),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="reference_image"; filename=%q`, filepath.Base(p.ImagePath)))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
