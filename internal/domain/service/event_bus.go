package service

import (
	"sync"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// EventBus is a synchronous in-process publish/subscribe fan-out keyed
// by event kind. Handlers run in subscription order on the publisher's
// goroutine. Events published with no subscribers are dropped: the only
// consumers are live transport fan-outs with no durability needs.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[model.EventKind][]func(model.DomainEvent)
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[model.EventKind][]func(model.DomainEvent))}
}

// Subscribe registers a handler for one event kind. Registration is
// expected at transport-layer startup, before publishing begins.
func (b *EventBus) Subscribe(kind model.EventKind, handler func(model.DomainEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish delivers the event to every subscriber of its kind, in
// subscription order, before returning.
func (b *EventBus) Publish(event model.DomainEvent) {
	b.mu.RLock()
	handlers := b.handlers[event.Kind()]
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(event)
	}
}
