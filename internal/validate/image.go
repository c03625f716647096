package validate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"strings"

	_ "golang.org/x/image/webp"

	"sorastudio/internal/domain"
)

const (
	// MaxImageBytes is the largest accepted reference image (5 MiB).
	MaxImageBytes = 5 * 1024 * 1024
	// MinImageSide is the smallest accepted width or height in pixels.
	MinImageSide = 256
	MinAspect    = 0.5
	MaxAspect    = 2.0
)

var acceptedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Image is a candidate reference image. Open is called at most once and the
// returned reader is always closed before ImageFile returns.
type Image struct {
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesImage adapts an in-memory payload.
func BytesImage(mimeType string, data []byte) Image {
	return Image{
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// CheckedImage is an image that passed every rule.
type CheckedImage struct {
	MIMEType string
	Width    int
	Height   int
	Data     []byte
}

// ImageFile enforces format, size and dimension rules on img.
func ImageFile(img Image) (*CheckedImage, error) {
	mimeType := normalizeMIME(img.MIMEType)
	if _, ok := acceptedImageTypes[mimeType]; !ok {
		return nil, domain.NewValidationError(domain.ReasonInvalidFormat, "unsupported image format %q, use JPEG, PNG or WebP", img.MIMEType)
	}
	if img.Size > MaxImageBytes {
		return nil, domain.NewValidationError(domain.ReasonTooLarge, "image exceeds %d MB", MaxImageBytes/(1024*1024))
	}
	if img.Open == nil {
		return nil, domain.NewValidationError(domain.ReasonUnreadable, "image has no content")
	}
	data, err := readBounded(img.Open)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationError(domain.ReasonUnreadable, "image could not be decoded: %v", err)
	}
	if cfg.Width < MinImageSide || cfg.Height < MinImageSide {
		return nil, domain.NewValidationError(domain.ReasonInvalidDimensions, "image must be at least %dx%d pixels", MinImageSide, MinImageSide)
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if ratio < MinAspect || ratio > MaxAspect {
		return nil, domain.NewValidationError(domain.ReasonInvalidDimensions, "aspect ratio %.2f is outside %.1f-%.1f", ratio, MinAspect, MaxAspect)
	}
	return &CheckedImage{MIMEType: mimeType, Width: cfg.Width, Height: cfg.Height, Data: data}, nil
}

func readBounded(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, domain.NewValidationError(domain.ReasonUnreadable, "image could not be opened: %v", err)
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(rc, MaxImageBytes+1))
	if err != nil {
		return nil, domain.NewValidationError(domain.ReasonUnreadable, "image could not be read: %v", err)
	}
	if len(data) > MaxImageBytes {
		return nil, domain.NewValidationError(domain.ReasonTooLarge, "image exceeds %d MB", MaxImageBytes/(1024*1024))
	}
	return data, nil
}

func normalizeMIME(value string) string {
	value = strings.TrimSpace(value)
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(parsed)
	}
	return strings.ToLower(value)
}

// DataURL encodes a checked image as an inline data payload.
func (c *CheckedImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", c.MIMEType, base64.StdEncoding.EncodeToString(c.Data))
}
