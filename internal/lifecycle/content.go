package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sorastudio/internal/domain"
	"sorastudio/internal/providers/sora"
	"sorastudio/internal/storage"
)

// Content is a readable rendition of a completed job.
type Content struct {
	Body        io.ReadCloser
	ContentType string
	// Size is -1 when unknown.
	Size int64
}

type variantInfo struct {
	file        string
	contentType string
}

var variants = map[string]variantInfo{
	"":                    {file: "video.mp4", contentType: "video/mp4"},
	sora.VariantThumbnail: {file: "thumbnail.webp", contentType: "image/webp"},
}

// Content returns the rendered video, or its thumbnail for
// sora.VariantThumbnail. Downloads are cached when a cache is configured.
func (m *Manager) Content(ctx context.Context, id, variant string) (*Content, error) {
	info, ok := variants[variant]
	if !ok {
		return nil, domain.NewValidationError(domain.ReasonInvalidParameters, "unknown content variant %q", variant)
	}

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, domain.ErrContentUnavailable
	}

	key := job.ID + "/" + info.file
	if m.cache != nil {
		if c, err := m.openCached(key, info); err == nil {
			return c, nil
		} else if !errors.Is(err, storage.ErrNotCached) {
			m.logger.Warn().Err(err).Str("job_id", id).Msg("read cached content")
		}
	}

	body, contentType, err := m.provider.Content(ctx, job.ExternalID, variant)
	if err != nil {
		return nil, fmt.Errorf("download content for %s: %w", job.ID, err)
	}
	if contentType == "" {
		contentType = info.contentType
	}
	if m.cache == nil {
		return &Content{Body: body, ContentType: contentType, Size: -1}, nil
	}

	_, n, err := m.cache.Write(ctx, key, body)
	_ = body.Close()
	if err != nil {
		return nil, fmt.Errorf("cache content for %s: %w", job.ID, err)
	}
	m.logger.Debug().Str("job_id", id).Str("variant", variant).Int64("bytes", n).Msg("content cached")
	return m.openCached(key, info)
}

func (m *Manager) openCached(key string, info variantInfo) (*Content, error) {
	f, err := m.cache.Open(key)
	if err != nil {
		return nil, err
	}
	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return &Content{Body: f, ContentType: info.contentType, Size: size}, nil
}
