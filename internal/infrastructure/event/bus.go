// Package event provides the in-process analytics event bus.
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fichesante/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultBufferSize = 256
	defaultWorkers    = 2
)

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// AsyncEventBus implements EventBus with a bounded queue drained by worker goroutines.
// Publish never blocks: events are dropped when the queue is full or the bus is stopped.
type AsyncEventBus struct {
	registry *HandlerRegistry
	queue    chan envelope
	workers  int
	logger   *zap.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	delivered atomic.Int64
	dropped   atomic.Int64
}

// BusOption configures an AsyncEventBus
type BusOption func(*busConfig)

type busConfig struct {
	bufferSize int
	workers    int
	logger     *zap.Logger
}

// WithBufferSize sets the queue capacity
func WithBufferSize(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithWorkers sets the number of dispatch goroutines
func WithWorkers(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBusLogger sets the logger
func WithBusLogger(logger *zap.Logger) BusOption {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAsyncEventBus creates a new bus. Events published before Start are queued.
func NewAsyncEventBus(opts ...BusOption) *AsyncEventBus {
	cfg := busConfig{
		bufferSize: defaultBufferSize,
		workers:    defaultWorkers,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &AsyncEventBus{
		registry: NewHandlerRegistry(),
		queue:    make(chan envelope, cfg.bufferSize),
		workers:  cfg.workers,
		logger:   cfg.logger,
	}
}

// Publish enqueues events for asynchronous dispatch
func (b *AsyncEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) {
	// handlers run after the request returns
	ctx = context.WithoutCancel(ctx)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, event := range events {
		if event == nil {
			continue
		}
		if b.closed {
			b.drop(event, "bus stopped")
			continue
		}
		select {
		case b.queue <- envelope{ctx: ctx, event: event}:
		default:
			b.drop(event, "queue full")
		}
	}
}

func (b *AsyncEventBus) drop(event shared.DomainEvent, reason string) {
	b.dropped.Add(1)
	b.logger.Warn("event dropped",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("reason", reason),
	)
}

// Subscribe registers a handler for specific event types
func (b *AsyncEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	// If handler specifies its own event types, use those
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *AsyncEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start launches the dispatch workers
func (b *AsyncEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("event bus already stopped")
	}
	if b.started {
		return nil
	}
	b.started = true
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.run()
	}
	b.logger.Info("event bus started", zap.Int("workers", b.workers), zap.Int("buffer", cap(b.queue)))
	return nil
}

// Stop closes the queue and waits for queued events to drain or ctx to expire
func (b *AsyncEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	if !b.started {
		// nobody will drain the queue
		b.started = true
		b.wg.Add(1)
		go b.run()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped",
			zap.Int64("delivered", b.delivered.Load()),
			zap.Int64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus drain interrupted: %w", ctx.Err())
	}
}

// Delivered returns how many events were dispatched to their handlers
func (b *AsyncEventBus) Delivered() int64 {
	return b.delivered.Load()
}

// Dropped returns how many events were discarded
func (b *AsyncEventBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *AsyncEventBus) run() {
	defer b.wg.Done()
	for env := range b.queue {
		for _, handler := range b.registry.Handlers(env.event.EventType()) {
			if err := b.dispatchToHandler(env.ctx, handler, env.event); err != nil {
				// Log error but continue with other handlers
				b.logger.Error("handler failed to process event",
					zap.String("event_type", env.event.EventType()),
					zap.String("event_id", env.event.EventID().String()),
					zap.Error(err),
				)
			}
		}
		b.delivered.Add(1)
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *AsyncEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

// Ensure AsyncEventBus implements EventBus
var _ shared.EventBus = (*AsyncEventBus)(nil)
