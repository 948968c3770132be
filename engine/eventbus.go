package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/borisprogrm/leaderboard-server/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

const (
	defaultQueueSize    = 1024
	defaultAsyncWorkers = 2
)

type subscription struct {
	id int64
	fn func(context.Context, core.Event)
}

// EventBus fans score events out to subscribers, synchronously or from a worker pool.
// Publishing never blocks writers: in async mode a full queue drops the event.
type EventBus struct {
	mode    DispatchMode
	mu      sync.RWMutex
	subs    map[core.EventType]map[int64]subscription
	nextID  int64
	queue   chan core.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:  mode,
		subs:  make(map[core.EventType]map[int64]subscription),
		queue: make(chan core.Event, defaultQueueSize),
		done:  make(chan struct{}),
	}
	if mode == DispatchAsync {
		eb.startWorkers(defaultAsyncWorkers)
	}
	return eb
}

func (e *EventBus) startWorkers(n int) {
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case ev := <-e.queue:
					e.dispatch(context.Background(), ev)
				case <-e.done:
					return
				}
			}
		}()
	}
}

// Close stops async workers and waits for them to exit. Queued events are discarded.
func (e *EventBus) Close() {
	e.once.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case <-e.done:
			return
		default:
		}
		select {
		case e.queue <- ev:
		default:
			e.dropped.Add(1)
		}
		return
	}
	e.dispatch(ctx, ev)
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
