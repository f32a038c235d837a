package docapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL       = "http://localhost:8000/api"
	defaultTimeout       = 30 * time.Second
	defaultMaxImageBytes = 10 * 1024 * 1024
)

// RequestObserver records one completed API round trip. Status is 0 when no response arrived.
type RequestObserver interface {
	ObserveAPIRequest(operation string, status int, duration time.Duration)
}

type noopRequestObserver struct{}

func (noopRequestObserver) ObserveAPIRequest(string, int, time.Duration) {}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxImageBytes      int64
	ResilienceExecutor *resilience.Executor
	// OnUnauthorized runs after any API call rejected with 401. Image fetches never trigger it.
	OnUnauthorized func(ctx context.Context)
	Observer       RequestObserver
}

// Client talks to the document-management REST API with the caller's bearer token.
type Client struct {
	baseURL        string
	creds          ports.CredentialSource
	httpClient     *http.Client
	limiter        *rate.Limiter
	executor       *resilience.Executor
	onUnauthorized func(context.Context)
	observer       RequestObserver
	maxImageBytes  int64
}

var (
	_ ports.AuthAPI         = (*Client)(nil)
	_ ports.DocumentAPI     = (*Client)(nil)
	_ ports.AnalysisAPI     = (*Client)(nil)
	_ ports.StatsAPI        = (*Client)(nil)
	_ ports.ResourceFetcher = (*Client)(nil)
)

func New(baseURL string, creds ports.CredentialSource, options Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if options.RateLimitRPS > 0 {
		burst := options.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RateLimitRPS), burst)
	}

	maxImageBytes := options.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}

	var observer RequestObserver = noopRequestObserver{}
	if options.Observer != nil {
		observer = options.Observer
	}

	return &Client{
		baseURL:        baseURL,
		creds:          creds,
		httpClient:     httpClient,
		limiter:        limiter,
		executor:       options.ResilienceExecutor,
		onUnauthorized: options.OnUnauthorized,
		observer:       observer,
		maxImageBytes:  maxImageBytes,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}
