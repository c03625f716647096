// Package sora is a client for the OpenAI videos API.
package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sorastudio/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second

	// VariantThumbnail selects the preview image from the content endpoint.
	VariantThumbnail = "thumbnail"
)

// Options configures a Client. Only APIKey is needed to dispatch work; a
// client without one still answers HasCredentials so callers can fail fast.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
}

// Client talks to the videos endpoints.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// CreateRequest is the payload for a new video.
type CreateRequest struct {
	Model          string
	Prompt         string
	Size           string
	Seconds        int
	InputReference string
}

// Video is the provider's view of one job.
type Video struct {
	ID           string
	Status       Status
	Progress     int
	OutputURL    string
	ThumbnailURL string
	Error        string
}

type createBody struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	Seconds        string `json:"seconds,omitempty"`
	InputReference string `json:"input_reference,omitempty"`
}

type videoObject struct {
	ID           string    `json:"id"`
	Object       string    `json:"object"`
	Model        string    `json:"model"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Error        *apiError `json:"error"`
}

// NewClient builds a client with defaults for the base URL and HTTP timeout.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		httpClient:   client,
		logger:       logger.With().Str("component", "sora").Logger(),
	}
}

// HasCredentials reports whether an API key was configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Create submits a new video job.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Video, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingCredentials
	}
	body := createBody{
		Model:          req.Model,
		Prompt:         req.Prompt,
		Size:           req.Size,
		InputReference: req.InputReference,
	}
	if req.Seconds > 0 {
		body.Seconds = strconv.Itoa(req.Seconds)
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("sora: encode request: %w", err)
	}
	var out videoObject
	if err := c.doJSON(ctx, http.MethodPost, "/videos", &buf, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &ProviderError{StatusCode: http.StatusOK, Message: "provider returned no video id"}
	}
	c.logger.Debug().Str("external_id", out.ID).Str("status", out.Status).Msg("video created")
	return c.toVideo(out), nil
}

// Retrieve fetches the current state of a video.
func (c *Client) Retrieve(ctx context.Context, externalID string) (*Video, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingCredentials
	}
	var out videoObject
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = externalID
	}
	return c.toVideo(out), nil
}

// Delete removes the provider side resource.
func (c *Client) Delete(ctx context.Context, externalID string) error {
	if !c.HasCredentials() {
		return domain.ErrMissingCredentials
	}
	return c.doJSON(ctx, http.MethodDelete, "/videos/"+url.PathEscape(externalID), nil, nil)
}

// Content streams the rendered video, or its thumbnail when variant is
// VariantThumbnail. The caller closes the returned body.
func (c *Client) Content(ctx context.Context, externalID, variant string) (io.ReadCloser, string, error) {
	if !c.HasCredentials() {
		return nil, "", domain.ErrMissingCredentials
	}
	path := "/videos/" + url.PathEscape(externalID) + "/content"
	if variant != "" {
		path += "?variant=" + url.QueryEscape(variant)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) toVideo(obj videoObject) *Video {
	v := &Video{
		ID:           obj.ID,
		Status:       Status(obj.Status),
		Progress:     obj.Progress,
		OutputURL:    obj.VideoURL,
		ThumbnailURL: obj.ThumbnailURL,
	}
	if obj.Error != nil {
		v.Error = obj.Error.Message
	}
	if v.Status == StatusCompleted {
		if v.OutputURL == "" {
			v.OutputURL = c.contentURL(obj.ID, "")
		}
		if v.ThumbnailURL == "" {
			v.ThumbnailURL = c.contentURL(obj.ID, VariantThumbnail)
		}
	}
	return v
}

func (c *Client) contentURL(id, variant string) string {
	u := fmt.Sprintf("%s/videos/%s/content", c.baseURL, url.PathEscape(id))
	if variant != "" {
		u += "?variant=" + url.QueryEscape(variant)
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}

// do performs the request and turns non-2xx answers into ProviderError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("sora: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrProviderUnavailable, method, path, err)
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	pe := &ProviderError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil {
		pe.Code = env.Error.Code
		pe.Message = env.Error.Message
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("sora: %s %s returned status %d", method, path, resp.StatusCode)
	}
	c.logger.Warn().Int("status", resp.StatusCode).Str("code", pe.Code).Str("path", path).Msg("provider request rejected")
	return nil, pe
}
