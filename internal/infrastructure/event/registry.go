package event

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/fichesante/backend/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	types   []string // empty matches every event type
}

func (s subscription) matches(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// HandlerRegistry keeps subscriptions in registration order. Writers copy the
// list; dispatch workers read the current snapshot without locking.
type HandlerRegistry struct {
	mu   sync.Mutex
	subs atomic.Pointer[[]subscription]
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	r := &HandlerRegistry{}
	r.subs.Store(&[]subscription{})
	return r
}

// Register subscribes handler to eventTypes, or to every event when none
// are given. Registering a handler again widens its subscription.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := slices.Clone(*r.subs.Load())
	i := slices.IndexFunc(subs, func(s subscription) bool { return s.handler == handler })
	switch {
	case i < 0:
		subs = append(subs, subscription{handler: handler, types: slices.Clone(eventTypes)})
	case len(subs[i].types) == 0:
		// already receives everything
	case len(eventTypes) == 0:
		subs[i].types = nil
	default:
		merged := append(slices.Clone(subs[i].types), eventTypes...)
		slices.Sort(merged)
		subs[i].types = slices.Compact(merged)
	}
	r.subs.Store(&subs)
}

// Unregister removes every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := slices.DeleteFunc(slices.Clone(*r.subs.Load()), func(s subscription) bool {
		return s.handler == handler
	})
	r.subs.Store(&subs)
}

// Handlers returns the handlers subscribed to eventType in registration order
func (r *HandlerRegistry) Handlers(eventType string) []shared.EventHandler {
	var out []shared.EventHandler
	for _, s := range *r.subs.Load() {
		if s.matches(eventType) {
			out = append(out, s.handler)
		}
	}
	return out
}

// Len returns the number of registered handlers
func (r *HandlerRegistry) Len() int {
	return len(*r.subs.Load())
}
