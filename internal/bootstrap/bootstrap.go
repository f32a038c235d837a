package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/smart-document-manager/internal/config"
	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/core/usecase"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
	blobfs "github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore/localfs"
	blobmem "github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore/memory"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/docapi"
	eventsmem "github.com/kirillkom/smart-document-manager/internal/infrastructure/events/memory"
	eventsnats "github.com/kirillkom/smart-document-manager/internal/infrastructure/events/nats"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/resilience"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/session/filestore"
	sessionpg "github.com/kirillkom/smart-document-manager/internal/infrastructure/session/postgres"
	"github.com/kirillkom/smart-document-manager/internal/observability/metrics"
)

const serviceName = "docctl"

type App struct {
	Config config.Config

	API         *docapi.Client
	Sessions    ports.SessionStore
	Events      ports.AuthEventBus
	Credentials ports.CredentialSource
	Handles     ports.HandleTable

	Auth      *usecase.AuthUseCase
	Documents *usecase.DocumentBrowser
	Dashboard *usecase.DashboardUseCase

	Metrics     *metrics.ClientMetrics
	HTTPMetrics *metrics.HTTPServerMetrics

	inspector ports.DocumentInspector
	closeFn   func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	clientMetrics := metrics.NewClientMetrics(serviceName, httpMetrics.Registry())

	sessions, err := newSessionStore(ctx, cfg, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}

	policy := ResiliencePolicy(cfg)
	executor := resilience.NewExecutor(policy).WithObserver(clientMetrics)

	events, err := newEventBus(cfg, policy, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}
	events.Subscribe(func(event domain.AuthEvent) {
		slog.Info("auth_event", "kind", event.Kind, "username", event.Username, "origin", event.Origin)
	})

	creds := usecase.NewSessionCredentials(sessions)

	var authUC *usecase.AuthUseCase
	api := docapi.New(cfg.APIBaseURL, creds, docapi.Options{
		Timeout:            cfg.APITimeout,
		RateLimitRPS:       cfg.APIRateLimitRPS,
		RateLimitBurst:     cfg.APIRateLimitBurst,
		MaxImageBytes:      cfg.ImageMaxBytes,
		ResilienceExecutor: executor,
		Observer:           clientMetrics,
		OnUnauthorized: func(ctx context.Context) {
			if err := authUC.Invalidate(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("session_invalidate_failed", "error", err)
			}
		},
	})
	authUC = usecase.NewAuthUseCase(api, sessions, events)

	handles, err := newHandleTable(cfg, clientMetrics)
	if err != nil {
		closeAll()
		return nil, err
	}

	return &App{
		Config: cfg,

		API:         api,
		Sessions:    sessions,
		Events:      events,
		Credentials: creds,
		Handles:     handles,

		Auth:      authUC,
		Documents: usecase.NewDocumentBrowser(api),
		Dashboard: usecase.NewDashboardUseCase(api, xlsx.NewWriter()),

		Metrics:     clientMetrics,
		HTTPMetrics: httpMetrics,

		inspector: pdf.NewInspector(),
		closeFn:   closeAll,
	}, nil
}

// UploadWorkflow builds a workflow that reports each step to onStep and to
// the client metrics.
func (a *App) UploadWorkflow(onStep func(usecase.UploadStep)) *usecase.UploadWorkflow {
	return usecase.NewUploadWorkflow(a.API, a.API, a.inspector, usecase.UploadWorkflowOptions{
		StepDelay:   a.Config.UploadStepDelay,
		MaxFileSize: a.Config.UploadMaxBytes,
		OnStep: func(step usecase.UploadStep) {
			a.Metrics.ObserveUploadStep(step.String())
			if onStep != nil {
				onStep(step)
			}
		},
	})
}

// NewImageLoader wires one loader instance to the session credentials, the
// API client and the configured handle table.
func (a *App) NewImageLoader(opts usecase.ImageLoaderOptions) *usecase.ImageLoader {
	if opts.Observer == nil {
		opts.Observer = a.Metrics
	}
	if opts.Timeout == 0 {
		opts.Timeout = a.Config.ImageTimeout
	}
	return usecase.NewImageLoader(a.Credentials, a.API, a.Handles, opts)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newSessionStore(ctx context.Context, cfg config.Config, closers *[]func()) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		db, err := sessionpg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		*closers = append(*closers, func() { closeDB(db) })
		store := sessionpg.New(db, cfg.SessionProfile)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return store, nil
	case config.SessionBackendFile, "":
		path := cfg.SessionFile
		if path == "" {
			defaultPath, err := filestore.DefaultPath()
			if err != nil {
				return nil, fmt.Errorf("resolve session path: %w", err)
			}
			path = defaultPath
		}
		return filestore.New(path), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// ResiliencePolicy overlays the configured retry and breaker values on the
// preset named by cfg.ResilienceProfile.
func ResiliencePolicy(cfg config.Config) resilience.Policy {
	preset := resilience.CommandPolicy()
	if cfg.ResilienceProfile == config.ResilienceServe {
		preset = resilience.ServePolicy()
	}
	minRequests := cfg.BreakerMinRequests
	if minRequests < 0 {
		minRequests = 0
	}
	return resilience.Policy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		Breaker: resilience.BreakerPolicy{
			Enabled:      cfg.BreakerEnabled,
			MinRequests:  uint32(minRequests),
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  cfg.BreakerOpenTimeout,
		},
	}.Fill(preset)
}

func newEventBus(cfg config.Config, policy resilience.Policy, closers *[]func()) (ports.AuthEventBus, error) {
	switch cfg.EventsBackend {
	case config.EventsBackendNATS:
		bus, err := eventsnats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, eventsnats.Options{
			ResilienceExecutor: resilience.NewExecutor(policy),
		})
		if err != nil {
			return nil, fmt.Errorf("init auth event bus: %w", err)
		}
		*closers = append(*closers, func() {
			if err := bus.Close(); err != nil {
				slog.Warn("auth_event_bus_close_failed", "error", err)
			}
		})
		return bus, nil
	case config.EventsBackendMemory, "":
		return eventsmem.New(), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

func newHandleTable(cfg config.Config, observer blobstore.LiveObserver) (ports.HandleTable, error) {
	opts := blobstore.Options{
		BaseURL:  cfg.PreviewBaseURL,
		MaxBytes: cfg.ImageMaxBytes,
		Observer: observer,
	}
	switch cfg.BlobBackend {
	case config.BlobBackendLocal:
		table, err := blobfs.New(cfg.BlobDir, opts)
		if err != nil {
			return nil, fmt.Errorf("init blob directory: %w", err)
		}
		return table, nil
	case config.BlobBackendMemory, "":
		return blobmem.New(opts), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}
