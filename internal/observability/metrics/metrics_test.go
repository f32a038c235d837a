package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewareNormalizesBlobPaths(t *testing.T) {
	m := NewHTTPServerMetrics("preview")
	handler := m.Middleware("preview", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blob/"+id, nil))
	}

	body := scrape(t, m)
	if !strings.Contains(body, `sdm_http_requests_total{method="GET",path="/blob/{id}",service="preview",status="404"} 2`) {
		t.Fatalf("expected normalized blob counter, got:\n%s", body)
	}
}

func TestClientMetricsShareRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("preview")
	client := NewClientMetrics("docctl", server.Registry())

	client.ObserveAPIRequest("list_documents", 200, 10*time.Millisecond)
	client.ObserveAPIRequest("fetch_image", 0, time.Millisecond)
	client.ObserveImageLoad("ready", 20*time.Millisecond)
	client.SetLiveHandles(3)
	client.ObserveStaleResult()
	client.ObserveRetry("docapi.stats")

	body := scrape(t, server)
	for _, want := range []string{
		`sdm_api_requests_total{operation="list_documents",service="docctl",status="200"} 1`,
		`sdm_api_requests_total{operation="fetch_image",service="docctl",status="transport_error"} 1`,
		`sdm_image_loads_total{outcome="ready",service="docctl"} 1`,
		`sdm_image_handles_live{service="docctl"} 3`,
		`sdm_image_stale_results_total{service="docctl"} 1`,
		`sdm_resilience_retries_total{operation="docapi.stats",service="docctl"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in:\n%s", want, body)
		}
	}
}

func scrape(t *testing.T, m *HTTPServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}
