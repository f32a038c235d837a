package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/events/memory"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/resilience"
)

const DefaultSubject = "auth.events"

// Bus fans auth events out to other client processes over NATS. Local
// subscribers are served by an in-process bus, and events received from
// other processes are replayed on it. Messages this process sent are skipped.
type Bus struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	subject  string
	origin   string
	local    *memory.Bus
	executor *resilience.Executor
}

var _ ports.AuthEventBus = (*Bus)(nil)

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Bus, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Bus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("smart-document-manager"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	bus := newBus(subject, options.ResilienceExecutor)
	bus.conn = conn
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		bus.deliverRemote(msg.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	bus.sub = sub
	return bus, nil
}

func newBus(subject string, executor *resilience.Executor) *Bus {
	return &Bus{
		subject:  subject,
		origin:   uuid.NewString(),
		local:    memory.New(),
		executor: executor,
	}
}

// Publish delivers to local subscribers first, then to other processes.
// A NATS failure is returned but local delivery has already happened.
func (b *Bus) Publish(ctx context.Context, event domain.AuthEvent) error {
	event.Origin = b.origin
	if err := b.local.Publish(ctx, event); err != nil {
		return err
	}
	if b.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal auth event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (b *Bus) Subscribe(handler func(domain.AuthEvent)) func() {
	return b.local.Subscribe(handler)
}

func (b *Bus) deliverRemote(data []byte) {
	var event domain.AuthEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Warn("auth_event_decode_failed", "subject", b.subject, "error", err)
		return
	}
	if event.Origin == b.origin {
		return
	}
	_ = b.local.Publish(context.Background(), event)
}

// Close drains the subscription and closes the connection.
func (b *Bus) Close() error {
	if b.conn == nil {
		return nil
	}
	defer b.conn.Close()
	if b.sub != nil {
		if err := b.sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
