// SPDX-License-Identifier: MIT
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultHistorySize is the number of recent events the hub retains for
// late or debugging consumers.
const DefaultHistorySize = 256

// Subscription is one consumer's view of the hub. Events arrive on C.
// When the consumer cannot keep up, new events are dropped for it (and
// counted), never queued without bound; the hub and other consumers are
// never blocked.
type Subscription struct {
	C <-chan Event

	id      int
	ch      chan Event
	hub     *Hub
	dropped atomic.Uint64
}

// Dropped reports how many events were skipped for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the hub and closes C.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub fans events out to subscribers. Publish never blocks: a slow
// subscriber loses events instead of stalling the producers. A bounded
// history of recent events is retained for snapshot reads.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]*Subscription
	nextID  int
	closed  bool
	seq     uint64
	history []Event // ring storage, histPos is the next write slot
	histPos int
	histLen int
}

// NewHub returns a hub retaining historySize recent events (0 uses
// DefaultHistorySize).
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Hub{
		subs:    make(map[int]*Subscription),
		history: make([]Event, historySize),
	}
}

// Subscribe registers a consumer with the given channel buffer (a
// non-positive buffer gets a small default). On a closed hub the
// returned subscription's channel is already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, id: h.nextID}
	h.nextID++

	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Publish wraps data in an envelope and offers it to every subscriber.
// Subscribers with a full channel skip this event. Callers must not
// invoke Publish from the audio callback.
func (h *Hub) Publish(typ Type, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.seq++
	evt := Event{
		Type:   typ,
		Seq:    h.seq,
		UnixMS: time.Now().UnixMilli(),
		Data:   data,
	}

	h.history[h.histPos] = evt
	h.histPos = (h.histPos + 1) % len(h.history)
	if h.histLen < len(h.history) {
		h.histLen++
	}

	for _, sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
}

// History returns a copy of the retained events, oldest first.
func (h *Hub) History() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.histLen)
	start := h.histPos - h.histLen
	if start < 0 {
		start += len(h.history)
	}
	for i := 0; i < h.histLen; i++ {
		out = append(out, h.history[(start+i)%len(h.history)])
	}
	return out
}

// Subscribers reports the number of attached consumers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close terminates all subscriptions. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
