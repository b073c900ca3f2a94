package events

import (
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

const subscriberBuffer = 8

// Hub fans health snapshots out to per-session subscribers. Delivery is
// ordered per session and at-least-once for a consumer that keeps up; a slow
// consumer loses its oldest pending snapshot rather than blocking publishers.
type Hub struct {
	mu     sync.Mutex
	topics map[domain.SessionID]map[int]chan *domain.HealthSnapshot
	nextID int
}

func NewHub() ports.EventHub {
	return &Hub{topics: make(map[domain.SessionID]map[int]chan *domain.HealthSnapshot)}
}

func (h *Hub) Publish(id domain.SessionID, snapshot *domain.HealthSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.topics[id] {
		select {
		case ch <- snapshot:
		default:
			// Drop the oldest pending snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (h *Hub) Subscribe(id domain.SessionID) (<-chan *domain.HealthSnapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[id] == nil {
		h.topics[id] = make(map[int]chan *domain.HealthSnapshot)
	}
	subID := h.nextID
	h.nextID++
	ch := make(chan *domain.HealthSnapshot, subscriberBuffer)
	h.topics[id][subID] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.topics[id]; ok {
			if c, ok := subs[subID]; ok {
				delete(subs, subID)
				close(c)
			}
			if len(subs) == 0 {
				delete(h.topics, id)
			}
		}
	}
	return ch, cancel
}

// CloseTopic drops every subscriber of a session, closing their channels.
// Called on session teardown.
func (h *Hub) CloseTopic(id domain.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.topics[id] {
		close(ch)
	}
	delete(h.topics, id)
}
