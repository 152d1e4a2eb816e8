package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ionizer_portal/platform/logger"
)

const defaultQueueSize = 256

type envelope struct {
	ctx   context.Context
	event Event
}

// InMemoryBus delivers events to handlers registered in the same process.
// Asynchronous publishes are dispatched by a single goroutine, so handlers
// observe events in publish order.
type InMemoryBus struct {
	hmu      sync.RWMutex
	handlers map[string][]Handler

	// cmu guards closed and the queue send; kept apart from hmu so the
	// dispatcher never waits on a publisher.
	cmu    sync.RWMutex
	queue  chan envelope
	done   chan struct{}
	closed bool
	log    *logger.Logger
}

// NewInMemoryBus creates a bus and starts its dispatcher.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	b := &InMemoryBus{
		handlers: make(map[string][]Handler),
		queue:    make(chan envelope, defaultQueueSize),
		done:     make(chan struct{}),
		log:      log,
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish queues event for asynchronous delivery. Events published after
// Close are dropped.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.cmu.RLock()
	defer b.cmu.RUnlock()
	if b.closed {
		b.log.Warn("event dropped after bus close", "event", event.EventName())
		return
	}
	// Handlers must not inherit a request deadline.
	b.queue <- envelope{ctx: context.WithoutCancel(ctx), event: event}
}

// PublishSync delivers event on the caller's goroutine and joins handler errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.EventName(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and waits for queued events to be delivered.
func (b *InMemoryBus) Close() {
	b.cmu.Lock()
	if b.closed {
		b.cmu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.cmu.Unlock()
	<-b.done
}

func (b *InMemoryBus) handlersFor(name string) []Handler {
	b.hmu.RLock()
	defer b.hmu.RUnlock()
	hs := b.handlers[name]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

func (b *InMemoryBus) dispatch() {
	defer close(b.done)
	for env := range b.queue {
		for _, h := range b.handlersFor(env.event.EventName()) {
			b.deliver(env, h)
		}
	}
}

func (b *InMemoryBus) deliver(env envelope, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event", env.event.EventName(), "panic", r)
		}
	}()
	if err := h.Handle(env.ctx, env.event); err != nil {
		b.log.Error("event handler failed", "event", env.event.EventName(), "error", err)
	}
}

var _ Bus = (*InMemoryBus)(nil)
