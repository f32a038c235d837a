package domain

import "time"

// Resource is a fetched binary payload before it is materialized.
type Resource struct {
	Data        []byte
	ContentType string
}

// ResourceHandle references a locally materialized copy of a fetched resource.
// It stays live until released through the handle table that created it.
type ResourceHandle struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LoadState int

const (
	LoadStateLoading LoadState = iota
	LoadStateReady
	LoadStateFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadStateLoading:
		return "loading"
	case LoadStateReady:
		return "ready"
	case LoadStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImageView is the observable render state of one image loader instance.
type ImageView struct {
	URL        string          `json:"url"`
	AltText    string          `json:"alt_text,omitempty"`
	StyleClass string          `json:"style_class,omitempty"`
	State      LoadState       `json:"-"`
	StateName  string          `json:"state"`
	Handle     *ResourceHandle `json:"handle,omitempty"`
	Err        error           `json:"-"`
	ErrMessage string          `json:"error,omitempty"`
}
