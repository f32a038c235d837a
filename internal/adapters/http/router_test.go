package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/observability/metrics"
)

type viewSourceFake struct {
	view domain.ImageView
}

func (f viewSourceFake) View() domain.ImageView { return f.view }

type handleReaderFake struct {
	data    map[string][]byte
	handles map[string]domain.ResourceHandle
}

func (f handleReaderFake) Open(_ context.Context, id string) (io.ReadCloser, *domain.ResourceHandle, error) {
	data, ok := f.data[id]
	if !ok {
		return nil, nil, fmt.Errorf("open handle %s: %w", id, domain.ErrHandleNotFound)
	}
	h := f.handles[id]
	return io.NopCloser(bytes.NewReader(data)), &h, nil
}

func newPreviewHandler(view domain.ImageView, reader handleReaderFake) http.Handler {
	return NewPreviewRouter(viewSourceFake{view: view}, reader, nil, PreviewOptions{}).Handler()
}

func TestCurrentRedirectsToReadyHandle(t *testing.T) {
	view := domain.ImageView{
		URL:       "http://api/documents/3/image",
		State:     domain.LoadStateReady,
		StateName: "ready",
		Handle:    &domain.ResourceHandle{ID: "h1", URL: "http://127.0.0.1:8090/blob/h1"},
	}
	handler := newPreviewHandler(view, handleReaderFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))

	if res.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "http://127.0.0.1:8090/blob/h1" {
		t.Fatalf("unexpected redirect target %q", loc)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestCurrentStates(t *testing.T) {
	cases := []struct {
		name       string
		view       domain.ImageView
		wantStatus int
		wantState  string
	}{
		{
			name:       "loading",
			view:       domain.ImageView{URL: "http://api/x", State: domain.LoadStateLoading, StateName: "loading"},
			wantStatus: http.StatusAccepted,
			wantState:  "loading",
		},
		{
			name: "failed",
			view: domain.ImageView{
				URL:        "http://api/x",
				State:      domain.LoadStateFailed,
				StateName:  "failed",
				ErrMessage: "image load failed: unauthorized: 401",
			},
			wantStatus: http.StatusBadGateway,
			wantState:  "failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			newPreviewHandler(tc.view, handleReaderFake{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))
			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, res.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["state"] != tc.wantState {
				t.Fatalf("expected state %s, got %v", tc.wantState, body["state"])
			}
			if tc.view.State == domain.LoadStateFailed && body["error"] != failedImageMessage {
				t.Fatalf("expected generic failure message, got %v", body["error"])
			}
		})
	}
}

func TestCurrentJSONFormatAndNoSelection(t *testing.T) {
	view := domain.ImageView{
		URL:       "http://api/documents/1/image",
		AltText:   "scan",
		State:     domain.LoadStateReady,
		StateName: "ready",
		Handle:    &domain.ResourceHandle{ID: "h1", URL: "/blob/h1"},
	}
	res := httptest.NewRecorder()
	newPreviewHandler(view, handleReaderFake{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current?format=json", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"alt_text":"scan"`) {
		t.Fatalf("expected view payload, got %s", res.Body.String())
	}

	res = httptest.NewRecorder()
	newPreviewHandler(domain.ImageView{}, handleReaderFake{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any url is set, got %d", res.Code)
	}
}

func TestBlobServesMaterializedBytes(t *testing.T) {
	reader := handleReaderFake{
		data:    map[string][]byte{"h1": []byte("png-bytes")},
		handles: map[string]domain.ResourceHandle{"h1": {ID: "h1", ContentType: "image/png", Size: 9}},
	}
	handler := newPreviewHandler(domain.ImageView{}, reader)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/blob/h1", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	if res.Body.String() != "png-bytes" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/blob/released", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for released handle, got %d", res.Code)
	}
}

func TestPreviewMetricsEndpoint(t *testing.T) {
	httpMetrics := metrics.NewHTTPServerMetrics("test")
	reader := handleReaderFake{
		data:    map[string][]byte{"h1": []byte("gif")},
		handles: map[string]domain.ResourceHandle{"h1": {ID: "h1", ContentType: "image/gif", Size: 3}},
	}
	handler := NewPreviewRouter(viewSourceFake{}, reader, httpMetrics, PreviewOptions{Service: "test"}).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blob/h1", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, `sdm_http_requests_total{method="GET",path="/blob/{id}",service="test",status="200"} 1`) {
		t.Fatalf("expected blob request counter, got %s", body)
	}
	if !strings.Contains(body, `sdm_http_blob_bytes_total{content_type="image/gif",service="test"} 3`) {
		t.Fatalf("expected blob byte counter, got %s", body)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	newPreviewHandler(domain.ImageView{}, handleReaderFake{}).ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected req-42, got %q", got)
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))
		done <- res.Code
	}()

	<-started

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/current", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("open: %w", domain.ErrHandleNotFound), want: http.StatusNotFound},
		{err: domain.WrapError(domain.ErrInvalidInput, "op", io.EOF), want: http.StatusBadRequest},
		{err: domain.WrapError(domain.ErrUnauthorized, "op", io.EOF), want: http.StatusUnauthorized},
		{err: domain.WrapError(domain.ErrTemporary, "op", io.EOF), want: http.StatusServiceUnavailable},
		{err: domain.WrapError(domain.ErrDocumentNotFound, "op", io.EOF), want: http.StatusNotFound},
		{err: io.ErrUnexpectedEOF, want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
