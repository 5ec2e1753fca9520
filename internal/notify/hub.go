// Package notify fans out scan completion events to waiting pollers and
// websocket clients, across processes when PostgreSQL is available.
package notify

import (
	"sync"
)

// Channel is the PostgreSQL NOTIFY channel for scan events.
const Channel = "scan_completed"

// Event reports that a scan's job reached a new status.
type Event struct {
	ScanID string `json:"scan_id"`
	Status string `json:"status"`
}

// Hub is an in-process publish/subscribe registry keyed by scan_id.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers interest in scanID. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe(scanID string) (<-chan Event, func()) {
	ch := make(chan Event, 1)

	h.mu.Lock()
	set, ok := h.subs[scanID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[scanID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[scanID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, scanID)
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber of ev.ScanID without blocking.
// A subscriber that has not drained its previous event keeps that one.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.ScanID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for scanID.
func (h *Hub) Subscribers(scanID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[scanID])
}
