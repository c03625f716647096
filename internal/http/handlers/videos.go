package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sorastudio/internal/domain"
	"sorastudio/internal/lifecycle"
	"sorastudio/internal/validate"
)

const (
	// Leaves room for an oversized image to reach the validator, which
	// reports too_large itself.
	maxSubmitBody  = 2 * validate.MaxImageBytes
	multipartInMem = 1 << 20
)

type referenceImagePayload struct {
	MIMEType string `json:"mime_type"`
	// Data is standard base64, optionally as a data: URL.
	Data string `json:"data"`
}

type submitRequest struct {
	Prompt          string                 `json:"prompt"`
	Model           string                 `json:"model"`
	Resolution      string                 `json:"resolution"`
	DurationSeconds int                    `json:"duration_seconds"`
	ReferenceImage  *referenceImagePayload `json:"reference_image,omitempty"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type listResponse struct {
	Videos []*domain.Job `json:"videos"`
}

func (a *App) ListVideos(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Manager.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, listResponse{Videos: jobs})
}

func (a *App) GetVideo(w http.ResponseWriter, r *http.Request) {
	job, err := a.Manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// CreateVideo accepts either a JSON body or a multipart form whose optional
// reference_image part carries the image file.
func (a *App) CreateVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)

	req, err := decodeSubmit(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.writeError(w, r, domain.NewValidationError(domain.ReasonTooLarge, "request body exceeds %d bytes", maxErr.Limit))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job, err := a.Manager.Submit(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, job)
}

func (a *App) RenameVideo(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Manager.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := a.Manager.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) RefreshVideo(w http.ResponseWriter, r *http.Request) {
	job, err := a.Manager.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) VideoContent(w http.ResponseWriter, r *http.Request) {
	content, err := a.Manager.Content(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("variant"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.ContentType)
	if content.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Body); err != nil {
		a.Logger.Debug().Err(err).Msg("stream content")
	}
}

func decodeSubmit(r *http.Request) (lifecycle.SubmitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipartSubmit(r)
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return lifecycle.SubmitRequest{}, err
		}
		return lifecycle.SubmitRequest{}, errors.New("invalid payload")
	}
	req := lifecycle.SubmitRequest{
		Prompt:          body.Prompt,
		Model:           domain.Model(body.Model),
		Resolution:      domain.Resolution(body.Resolution),
		DurationSeconds: body.DurationSeconds,
	}
	if body.ReferenceImage != nil {
		img, err := decodeInlineImage(*body.ReferenceImage)
		if err != nil {
			return lifecycle.SubmitRequest{}, err
		}
		req.ReferenceImage = &img
	}
	return req, nil
}

func decodeMultipartSubmit(r *http.Request) (lifecycle.SubmitRequest, error) {
	if err := r.ParseMultipartForm(multipartInMem); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return lifecycle.SubmitRequest{}, err
		}
		return lifecycle.SubmitRequest{}, errors.New("invalid multipart form")
	}
	duration, err := strconv.Atoi(strings.TrimSpace(r.FormValue("duration_seconds")))
	if err != nil {
		return lifecycle.SubmitRequest{}, errors.New("duration_seconds must be a number")
	}
	req := lifecycle.SubmitRequest{
		Prompt:          r.FormValue("prompt"),
		Model:           domain.Model(r.FormValue("model")),
		Resolution:      domain.Resolution(r.FormValue("resolution")),
		DurationSeconds: duration,
	}

	if files := r.MultipartForm.File["reference_image"]; len(files) > 0 {
		fh := files[0]
		req.ReferenceImage = &validate.Image{
			MIMEType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	return req, nil
}

func decodeInlineImage(p referenceImagePayload) (validate.Image, error) {
	data := p.Data
	mimeType := p.MIMEType
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return validate.Image{}, errors.New("malformed data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return validate.Image{}, errors.New("reference_image.data must be base64")
	}
	return validate.BytesImage(mimeType, raw), nil
}
