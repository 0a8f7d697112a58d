package engine

import (
	"sync"

	"github.com/elfiee/engine/internal/model"
)

// StateChangeEvent announces a committed batch to subscribers (spec.md
// section 4.6 step 8 / section 6 "change-notification channel").
type StateChangeEvent struct {
	FileID string
	Events []model.Event
}

// Hub is a per-archive, bounded, lossy broadcaster. Slow subscribers drop
// messages rather than apply back-pressure to the publishing actor
// (spec.md section 5, "Back-pressure").
type Hub struct {
	mu         sync.Mutex
	subs       map[int]chan StateChangeEvent
	next       int
	bufferSize int
}

// NewHub returns a Hub whose subscriber channels are each buffered to
// bufferSize messages.
func NewHub(bufferSize int) *Hub {
	return &Hub{subs: make(map[int]chan StateChangeEvent), bufferSize: bufferSize}
}

// Subscribe returns a channel of future StateChangeEvents and a cancel
// func to unsubscribe.
func (h *Hub) Subscribe() (<-chan StateChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan StateChangeEvent, h.bufferSize)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish fans ev out to every subscriber, best-effort: a full subscriber
// channel drops the message instead of blocking the publisher.
func (h *Hub) Publish(ev StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// lagging subscriber; drop per spec.md's lossy broadcast policy
		}
	}
}
