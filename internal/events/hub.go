// Package events provides a small in-process pub/sub hub used to stream
// pipeline progress to API clients.
package events

import "sync"

// Event types published by the discovery pipeline.
const (
	TypeRunStarted  = "run_started"
	TypeStage       = "stage"
	TypeRunFinished = "run_finished"
)

// Event is a single progress notification tied to a pipeline run.
type Event struct {
	Type  string         `json:"type"`
	RunID string         `json:"run_id,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Hub fans events out to all current subscribers. Subscribers that fall
// behind lose events rather than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its channel together
// with a cancel function. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}

// Subscribers reports the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
