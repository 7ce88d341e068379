package bridge

import (
	"log"
	"sync"

	"github.com/famish99/pianodctl/internal/pianod"
)

// subscriber is one event stream waiting for notifications
type subscriber struct {
	notify chan pianod.Notification
}

// Hub fans session notifications out to every connected event stream.
// It is registered on the session as an observer.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]bool)}
}

// subscribe registers a stream to receive notifications
func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{notify: make(chan pianod.Notification, 16)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = true
	log.Printf("Registered event stream (total: %d)", len(h.subs))
	return sub
}

// unsubscribe removes a stream from notifications
func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	log.Printf("Unregistered event stream (total: %d)", len(h.subs))
}

// Subscribers returns the number of connected streams
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify implements pianod.Observer. Slow streams drop notifications
// rather than stall the session's read loop.
func (h *Hub) Notify(n pianod.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.notify <- n:
		default:
			log.Printf("Warning: event stream channel full, dropping %s", n.Kind)
		}
	}
}
