// Package events is the in-process pub/sub bus the services layer uses to
// decouple side effects (stats recompute, webhook fan-out, task enqueues)
// from the write path. Handlers run asynchronously; a panicking handler is
// recovered and logged, never propagated to the emitter.
package events

import (
	"sync"

	"tern/internal/utils/logger"
)

// Handler receives the payload passed to Emit.
type Handler func(data interface{})

var (
	log = logger.New("EVENTS")

	mu       sync.RWMutex
	handlers = make(map[string][]Handler)
)

// On registers a handler for the given event name. Names follow the
// "<table>.created" convention for model lifecycle events; domain events
// use dotted names like "smtp_account.disabled".
func On(event string, h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[event] = append(handlers[event], h)
}

// Emit dispatches data to every handler registered for event. Dispatch is
// fire-and-forget.
func Emit(event string, data interface{}) {
	mu.RLock()
	hs := make([]Handler, len(handlers[event]))
	copy(hs, handlers[event])
	mu.RUnlock()

	for _, h := range hs {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("handler for %q panicked: %v", event, r)
				}
			}()
			h(data)
		}(h)
	}
}

// Reset drops all registered handlers. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	handlers = make(map[string][]Handler)
}
