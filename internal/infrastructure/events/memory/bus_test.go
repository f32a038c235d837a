package memory

import (
	"context"
	"testing"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := New()
	var order []string
	bus.Subscribe(func(e domain.AuthEvent) { order = append(order, "first:"+string(e.Kind)) })
	bus.Subscribe(func(e domain.AuthEvent) { order = append(order, "second:"+string(e.Kind)) })

	if err := bus.Publish(context.Background(), domain.AuthEvent{Kind: domain.AuthLoggedIn}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first:logged_in" || order[1] != "second:logged_in" {
		t.Fatalf("unexpected delivery order %v", order)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	calls := 0
	unsubscribe := bus.Subscribe(func(domain.AuthEvent) { calls++ })
	keep := 0
	bus.Subscribe(func(domain.AuthEvent) { keep++ })

	unsubscribe()
	unsubscribe()
	if bus.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.Subscribers())
	}

	_ = bus.Publish(context.Background(), domain.AuthEvent{Kind: domain.AuthLoggedOut})
	if calls != 0 || keep != 1 {
		t.Fatalf("expected only remaining subscriber called, got removed=%d kept=%d", calls, keep)
	}
}

func TestHandlerMaySubscribeDuringDelivery(t *testing.T) {
	bus := New()
	bus.Subscribe(func(domain.AuthEvent) {
		bus.Subscribe(func(domain.AuthEvent) {})
	})
	_ = bus.Publish(context.Background(), domain.AuthEvent{Kind: domain.AuthSessionExpired})
	if bus.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", bus.Subscribers())
	}
}
