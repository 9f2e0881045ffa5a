// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrBusClosed is returned by Publish after Shutdown.
	ErrBusClosed = errors.New("event bus is shutting down")
	// ErrBusFull is returned when the event buffer is full and the event is dropped.
	ErrBusFull = errors.New("event channel full")
)

// Bus is an in-process event bus for batch lifecycle events.
// A single delivery loop hands events to handlers in publish order,
// and to handlers of one event in subscription order. Shutdown drains the buffer.
type Bus struct {
	mu     sync.RWMutex
	routes map[EventType][]route
	logger *zap.Logger

	queue   chan Event
	closing chan struct{}
	closed  atomic.Bool
	once    sync.Once
	done    chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

type route struct {
	id      string
	handler Handler
}

// Stats holds bus counters.
type Stats struct {
	Buffer    int            `json:"buffer"`
	Pending   int            `json:"pending"`
	Delivered uint64         `json:"delivered"`
	Dropped   uint64         `json:"dropped"`
	Failed    uint64         `json:"failed"`
	Handlers  map[string]int `json:"handlers"`
}

// NewBus starts a bus with a buffer of bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	b := &Bus{
		routes:  make(map[EventType][]route),
		logger:  logger.Named("event_bus"),
		queue:   make(chan Event, bufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

// Subscribe registers handler for eventType. AllEvents matches every type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.routes[eventType] = append(b.routes[eventType], route{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{bus: b, id: id, eventType: eventType}
}

// SubscribeFunc registers an ordinary function as a handler.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event for delivery. It does not block.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers an event on the calling goroutine and returns the joined handler errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, r := range b.matching(event.Type()) {
		if err := r.handler.Handle(ctx, event); err != nil {
			b.failed.Add(1)
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", r.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	b.delivered.Add(1)
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

// matching copies the routes for a type and for AllEvents so handlers run without the lock.
func (b *Bus) matching(eventType EventType) []route {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]route, 0, len(b.routes[eventType])+len(b.routes[AllEvents]))
	out = append(out, b.routes[eventType]...)
	if eventType != AllEvents {
		out = append(out, b.routes[AllEvents]...)
	}
	return out
}

func (b *Bus) loop() {
	defer close(b.done)
	// A started handler runs to completion even during Shutdown.
	ctx := context.Background()
	for {
		select {
		case event := <-b.queue:
			_ = b.PublishSync(ctx, event)
		case <-b.closing:
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(ctx, event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	routes := b.routes[eventType]
	for i, r := range routes {
		if r.id == id {
			routes = append(routes[:i:i], routes[i+1:]...)
			break
		}
	}
	if len(routes) == 0 {
		delete(b.routes, eventType)
	} else {
		b.routes[eventType] = routes
	}
	b.mu.Unlock()

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops accepting events and waits for the buffer to drain or ctx to be done.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.closing)
	})

	select {
	case <-b.done:
		b.logger.Debug("Event bus stopped",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	handlers := make(map[string]int, len(b.routes))
	for eventType, routes := range b.routes {
		handlers[string(eventType)] = len(routes)
	}
	b.mu.RUnlock()

	return Stats{
		Buffer:    cap(b.queue),
		Pending:   len(b.queue),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Failed:    b.failed.Load(),
		Handlers:  handlers,
	}
}

var _ Publisher = (*Bus)(nil)
