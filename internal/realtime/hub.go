package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Hub fans inbound events out to the listeners registered per event name.
type Hub struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		handlers: make(map[Event][]Handler),
		log:      log,
	}
}

// On registers fn for ev. Handlers run in registration order on the reading
// goroutine.
func (h *Hub) On(ev Event, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[ev] = append(h.handlers[ev], fn)
}

// Off drops every handler for ev.
func (h *Hub) Off(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, ev)
}

// Dispatch delivers f to its listeners. A panicking listener is logged and
// does not stop delivery to the others.
func (h *Hub) Dispatch(f Frame) {
	h.mu.RLock()
	handlers := append([]Handler(nil), h.handlers[f.Event]...)
	h.mu.RUnlock()

	if len(handlers) == 0 {
		h.log.Debug().Str("event", string(f.Event)).Msg("no listener for event")
		return
	}
	for _, fn := range handlers {
		h.call(f, fn)
	}
}

func (h *Hub) call(f Frame, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("event", string(f.Event)).Interface("panic", r).Msg("event listener panicked")
		}
	}()
	fn(f.Data)
}
