package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

type subscription struct {
	id      uint64
	handler func(domain.AuthEvent)
}

// Bus delivers auth events synchronously, in subscription order, to in-process handlers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

var _ ports.AuthEventBus = (*Bus)(nil)

func New() *Bus {
	return &Bus{}
}

func (b *Bus) Publish(_ context.Context, event domain.AuthEvent) error {
	b.mu.RLock()
	handlers := make([]func(domain.AuthEvent), 0, len(b.subs))
	for _, sub := range b.subs {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

// Subscribe registers handler. The returned func removes it and may be called more than once.
func (b *Bus) Subscribe(handler func(domain.AuthEvent)) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
