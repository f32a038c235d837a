package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Observer receives retry and breaker transitions, typically a metrics sink.
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation, state string)
}

type noopObserver struct{}

func (noopObserver) ObserveRetry(string)               {}
func (noopObserver) ObserveBreakerState(string, string) {}

// Executor applies one Policy to named operations. Each operation name gets
// its own circuit breaker.
type Executor struct {
	policy   Policy
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.sanitized(),
		observer: noopObserver{},
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// WithObserver installs obs for subsequent calls. A nil obs restores the no-op observer.
func (e *Executor) WithObserver(obs Observer) *Executor {
	if obs == nil {
		obs = noopObserver{}
	}
	e.observer = obs
	return e
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// Execute runs fn, retrying failures the classifier marks retryable.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	return e.guard(ctx, operation, fn, classifier, e.policy.MaxAttempts)
}

// ExecuteOnce runs fn a single time behind the circuit breaker. It is meant
// for calls that are not safe to repeat.
func (e *Executor) ExecuteOnce(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	return e.guard(ctx, operation, fn, classifier, 1)
}

func (e *Executor) guard(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier, attempts int) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if classifier == nil {
		classifier = recordEveryFailure
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}

	attempt := func() error { return e.retry(ctx, op, fn, classifier, attempts) }
	if !e.policy.Breaker.Enabled {
		return attempt()
	}
	_, err := e.breaker(op, classifier).Execute(func() (any, error) {
		return nil, attempt()
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classifier ErrorClassifier, attempts int) error {
	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if n >= attempts || !classifier(err).Retryable {
			return err
		}

		wait := e.policy.delay(n)
		slog.Warn("retry_attempt",
			"operation", op,
			"attempt", n,
			"max_attempts", attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		e.observer.ObserveRetry(op)
		if !sleep(ctx, wait) {
			return err
		}
	}
}

func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[op]; ok {
		return cb
	}

	bp := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: bp.HalfOpenCalls,
		Timeout:     bp.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= bp.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			e.observer.ObserveBreakerState(name, to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordEveryFailure(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
