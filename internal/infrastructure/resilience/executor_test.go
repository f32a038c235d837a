package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFlaky = errors.New("flaky")

func retryable(err error) ErrorClassification {
	return ErrorClassification{Retryable: errors.Is(err, errFlaky), RecordFailure: true}
}

func quickPolicy(attempts int, breaker bool) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		Breaker:        BreakerPolicy{Enabled: breaker},
	}
}

type retryObserverFake struct {
	retries []string
	states  []string
}

func (f *retryObserverFake) ObserveRetry(operation string) { f.retries = append(f.retries, operation) }

func (f *retryObserverFake) ObserveBreakerState(_ string, state string) {
	f.states = append(f.states, state)
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	obs := &retryObserverFake{}
	exec := NewExecutor(quickPolicy(3, false)).WithObserver(obs)

	calls := 0
	err := exec.Execute(context.Background(), "docapi.get_document", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, retryable)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(obs.retries) != 2 {
		t.Fatalf("expected 2 retries observed, got %v", obs.retries)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	exec := NewExecutor(quickPolicy(3, false))
	denied := errors.New("denied")

	calls := 0
	err := exec.Execute(context.Background(), "docapi.check_auth", func(context.Context) error {
		calls++
		return denied
	}, retryable)
	if !errors.Is(err, denied) {
		t.Fatalf("expected denied error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestExecuteOnceNeverRetries(t *testing.T) {
	obs := &retryObserverFake{}
	exec := NewExecutor(quickPolicy(5, false)).WithObserver(obs)

	calls := 0
	err := exec.ExecuteOnce(context.Background(), "docapi.upload", func(context.Context) error {
		calls++
		return errFlaky
	}, retryable)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected flaky error, got %v", err)
	}
	if calls != 1 || len(obs.retries) != 0 {
		t.Fatalf("expected a single call and no retries, got %d calls, %v", calls, obs.retries)
	}
}

func TestExecuteReturnsLastErrorWhenCancelledDuringBackoff(t *testing.T) {
	exec := NewExecutor(Policy{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	err := exec.Execute(ctx, "docapi.list_documents", func(context.Context) error {
		cancel()
		return errFlaky
	}, retryable)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last call error, got %v", err)
	}
}

func TestCommandPolicyTripsBreakerWithinAFewCalls(t *testing.T) {
	obs := &retryObserverFake{}
	exec := NewExecutor(CommandPolicy()).WithObserver(obs)
	permanent := func(error) ErrorClassification { return ErrorClassification{RecordFailure: true} }

	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "docapi.stats", func(context.Context) error {
			return errFlaky
		}, permanent)
		if !errors.Is(err, errFlaky) {
			t.Fatalf("call %d: expected flaky error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "docapi.stats", func(context.Context) error {
		t.Fatalf("open breaker must not call the operation")
		return nil
	}, permanent)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(obs.states) != 1 || obs.states[0] != "open" {
		t.Fatalf("expected transition to open, got %v", obs.states)
	}

	other := exec.Execute(context.Background(), "docapi.categories", func(context.Context) error { return nil }, permanent)
	if other != nil {
		t.Fatalf("expected independent breaker per operation, got %v", other)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	exec := NewExecutor(Policy{MaxAttempts: 1, Breaker: BreakerPolicy{Enabled: true, MinRequests: 1}})
	notFound := errors.New("not found")
	ignore := func(error) ErrorClassification { return ErrorClassification{} }

	for i := 0; i < 5; i++ {
		if err := exec.Execute(context.Background(), "docapi.get_document", func(context.Context) error {
			return notFound
		}, ignore); !errors.Is(err, notFound) {
			t.Fatalf("call %d: expected not found, got %v", i, err)
		}
	}
}

func TestPolicyFillKeepsExplicitValues(t *testing.T) {
	got := Policy{MaxAttempts: 1, Breaker: BreakerPolicy{MinRequests: 7, FailureRatio: 2}}.Fill(ServePolicy())
	serve := ServePolicy()

	if got.MaxAttempts != 1 || got.Breaker.MinRequests != 7 {
		t.Fatalf("expected explicit values kept, got %+v", got)
	}
	if got.InitialBackoff != serve.InitialBackoff || got.Breaker.OpenTimeout != serve.Breaker.OpenTimeout {
		t.Fatalf("expected unset values from preset, got %+v", got)
	}
	if got.Breaker.FailureRatio != serve.Breaker.FailureRatio {
		t.Fatalf("expected out-of-range ratio replaced, got %v", got.Breaker.FailureRatio)
	}
	if got.Breaker.Enabled {
		t.Fatalf("expected Enabled left as given")
	}
}

func TestPolicyDelayGrowsToCap(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Fatalf("retry %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestNewExecutorSanitizesPolicy(t *testing.T) {
	p := NewExecutor(Policy{InitialBackoff: time.Second, MaxBackoff: time.Millisecond, Multiplier: 0.5}).Policy()
	if p.MaxBackoff != time.Second {
		t.Fatalf("expected max backoff raised to initial, got %s", p.MaxBackoff)
	}
	if p.Multiplier != 1 {
		t.Fatalf("expected multiplier clamped to 1, got %v", p.Multiplier)
	}
	if p.MaxAttempts != CommandPolicy().MaxAttempts {
		t.Fatalf("expected command preset attempts, got %d", p.MaxAttempts)
	}
}
