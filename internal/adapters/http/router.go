package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/observability/metrics"
)

const failedImageMessage = "failed to load image"

type PreviewOptions struct {
	Service      string
	MaxInFlight  int
	QueueTimeout time.Duration
}

// PreviewRouter serves the current image loader view and the handles it
// materialized.
type PreviewRouter struct {
	views   ports.ImageViewSource
	blobs   ports.HandleReader
	metrics *metrics.HTTPServerMetrics
	opts    PreviewOptions
}

func NewPreviewRouter(
	views ports.ImageViewSource,
	blobs ports.HandleReader,
	httpMetrics *metrics.HTTPServerMetrics,
	opts PreviewOptions,
) *PreviewRouter {
	if opts.Service == "" {
		opts.Service = "docctl-preview"
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = 100 * time.Millisecond
	}
	return &PreviewRouter{
		views:   views,
		blobs:   blobs,
		metrics: httpMetrics,
		opts:    opts,
	}
}

func (rt *PreviewRouter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /current", rt.current)
	mux.HandleFunc("GET /blob/{id}", rt.blob)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.QueueTimeout)
	handler = recoverMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *PreviewRouter) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// current redirects to the materialized image once the load is ready.
// With ?format=json it always answers with the view snapshot.
func (rt *PreviewRouter) current(w http.ResponseWriter, r *http.Request) {
	view := publicView(rt.views.View())
	if view.URL == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no image selected"})
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, view)
		return
	}

	switch view.State {
	case domain.LoadStateReady:
		if view.Handle == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ready view without handle"})
			return
		}
		http.Redirect(w, r, view.Handle.URL, http.StatusFound)
	case domain.LoadStateFailed:
		writeJSON(w, http.StatusBadGateway, view)
	default:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusAccepted, view)
	}
}

func (rt *PreviewRouter) blob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, handle, err := rt.blobs.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", handle.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if handle.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(handle.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, body)
	if err != nil {
		slog.Warn("blob_write_failed",
			"request_id", requestIDFromContext(r.Context()),
			"handle_id", id,
			"error", err,
		)
	}
	if rt.metrics != nil {
		rt.metrics.RecordBlobServed(rt.opts.Service, handle.ContentType, n)
	}
}

// publicView hides the failure cause; the display surface only reports
// that the image failed.
func publicView(view domain.ImageView) domain.ImageView {
	if view.State == domain.LoadStateFailed {
		view.ErrMessage = failedImageMessage
	}
	return view
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := http.StatusText(status)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_response_encode_failed", "error", err)
	}
}
