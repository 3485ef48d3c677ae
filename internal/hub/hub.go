// Package hub fans mutation events out to connected subscribers.
package hub

import (
	"log"
	"sync"

	"github.com/bryan-buckman/watchdeck/internal/model"
)

// Event types.
const (
	EventWatchCreated = "watch_created"
	EventWatchUpdated = "watch_updated"
	EventWatchDeleted = "watch_deleted"
	EventBulkAction   = "bulk_action"
)

// Event is the envelope delivered to every subscriber after a
// successful mutation. Only the fields relevant to the event type are
// populated.
type Event struct {
	Type    string       `json:"type"`
	Watch   *model.Watch `json:"watch,omitempty"`
	WatchID string       `json:"watch_id,omitempty"`
	Action  string       `json:"action,omitempty"`
	Count   int          `json:"count,omitempty"`
}

// Subscriber is a delivery capability. Send must not block
// indefinitely; a Send error is treated as a disconnect and the
// subscriber is unregistered.
type Subscriber interface {
	Send(Event) error
}

// Hub tracks currently connected subscribers. Delivery is best
// effort: events are not persisted or replayed, and a subscriber that
// connects after a mutation never sees that mutation's event.
type Hub struct {
	mu   sync.Mutex
	subs map[Subscriber]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[Subscriber]struct{})}
}

// Subscribe registers a subscriber for future events.
func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

// Unsubscribe removes a subscriber. Unknown subscribers are ignored.
func (h *Hub) Unsubscribe(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast attempts delivery to every registered subscriber and
// unregisters any whose Send fails. Delivery order across subscribers
// is unspecified. Broadcast never reports failure to the caller.
func (h *Hub) Broadcast(evt Event) {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.Send(evt); err != nil {
			log.Printf("hub: dropping subscriber: %v", err)
			h.Unsubscribe(s)
		}
	}
}

// Close drops all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	h.subs = make(map[Subscriber]struct{})
	h.mu.Unlock()
}
