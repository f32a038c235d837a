// Package blobstore holds the validation shared by the handle table implementations.
package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

const DefaultMaxBytes = 10 * 1024 * 1024

// LiveObserver is told the live handle count after every change.
type LiveObserver interface {
	SetLiveHandles(n int)
}

type Options struct {
	// BaseURL prefixes handle URLs: <BaseURL>/blob/<id>.
	BaseURL  string
	MaxBytes int64
	Observer LiveObserver
}

func (o Options) Normalize() Options {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// Inspect verifies that res is a decodable image within maxBytes and builds
// a new handle describing it. The handle id is a fresh UUID.
func Inspect(res domain.Resource, opts Options, now time.Time) (*domain.ResourceHandle, error) {
	if len(res.Data) == 0 {
		return nil, domain.WrapError(domain.ErrDecode, "inspect resource", errors.New("empty payload"))
	}
	if int64(len(res.Data)) > opts.MaxBytes {
		return nil, domain.WrapError(domain.ErrDecode, "inspect resource",
			fmt.Errorf("payload of %d bytes exceeds max %d", len(res.Data), opts.MaxBytes))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrDecode, "inspect resource", err)
	}

	id := uuid.NewString()
	return &domain.ResourceHandle{
		ID:          id,
		URL:         opts.BaseURL + "/blob/" + id,
		ContentType: "image/" + format,
		Size:        int64(len(res.Data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
		CreatedAt:   now.UTC(),
	}, nil
}

// Extension returns the file extension matching a handle's content type.
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
