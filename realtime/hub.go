package realtime

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/borisprogrm/leaderboard-server/core"
)

type subscriber struct {
	ch    chan core.Event
	games []core.GameID
}

func (s subscriber) wants(ev core.Event) bool {
	return len(s.games) == 0 || slices.Contains(s.games, ev.GameID)
}

// Hub is a simple pub/sub for broadcasting score events to channels.
// Slow subscribers lose events instead of blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	closed  bool
	dropped atomic.Uint64
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a buffered receiver. With no games every event is
// delivered; otherwise only events for the listed boards.
// Subscribing to a closed hub returns an already closed channel.
func (h *Hub) Subscribe(buffer int, games ...core.GameID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan core.Event, buffer)
	if h.closed {
		close(ch)
		return 0, ch
	}
	h.next++
	id := h.next
	h.subs[id] = subscriber{ch: ch, games: slices.Clone(games)}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// the read lock is held while sending so Unsubscribe cannot close a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close ends every subscription; their channels are closed.
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

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
