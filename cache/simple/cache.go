// Package simple is a read-through TTL cache for Top queries with
// per-game stampede protection: concurrent misses for a game share one
// in-flight fetch instead of each calling the store.
package simple

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Source is the ranked read the cache sits in front of.
type Source interface {
	Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error)
}

// Outcome classifies how a Top call was served.
type Outcome string

const (
	// OutcomeHit was served from a populated, unexpired entry.
	OutcomeHit Outcome = "hit"
	// OutcomeShared waited on a fetch started by another caller.
	OutcomeShared Outcome = "shared"
	// OutcomeMiss started a new fetch.
	OutcomeMiss Outcome = "miss"
	// OutcomeError is reported once per failed fetch.
	OutcomeError Outcome = "error"
)

// Observer is notified about every Top call. It must be cheap and non-blocking.
type Observer interface {
	ObserveCache(game core.GameID, outcome Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(game core.GameID, outcome Outcome)

func (f ObserverFunc) ObserveCache(game core.GameID, outcome Outcome) { f(game, outcome) }

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver installs an observer (metrics, tracing).
func WithObserver(o Observer) Option { return func(c *Cache) { c.observer = o } }

// WithCloseTimeout bounds how long Close waits for running fetches (defaults to 5s).
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.closeTimeout = d
		}
	}
}

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// fetch is a one-shot future for a Top call against the source.
// records and err are written once, before done is closed.
type fetch struct {
	done    chan struct{}
	records []core.ScoreRecord
	err     error
}

// entry is never mutated after it is stored; refreshes replace it.
// A zero expiresAt marks a fetch that is still running.
type entry struct {
	expiresAt time.Time
	validSize int
	fetch     *fetch
}

func (e *entry) pending() bool { return e.expiresAt.IsZero() }

// Cache serves Top from per-game entries that live for ttl.
type Cache struct {
	source   Source
	ttl      time.Duration
	entries  *xsync.MapOf[core.GameID, *entry]
	now      func() time.Time
	observer Observer
	logger   *slog.Logger

	closeTimeout time.Duration

	// mu orders fetch start against Close so that wg.Add never races wg.Wait.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a cache in front of source. A ttl of zero disables caching:
// every call is a miss with its own fetch.
func New(source Source, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		source:       source,
		ttl:          max(ttl, 0),
		entries:      xsync.NewMapOf[core.GameID, *entry](),
		now:          time.Now,
		logger:       slog.Default(),
		closeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug("rank cache initialized", "provider", "simple", "ttl", c.ttl)
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Top returns up to nTop records for game. Results are at most ttl old.
func (c *Cache) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, core.ErrClosed
	}
	now := c.now()
	var (
		outcome Outcome
		f       *fetch
	)
	c.entries.Compute(game, func(old *entry, loaded bool) (*entry, bool) {
		if loaded && c.ttl > 0 && old.validSize >= nTop {
			if old.pending() {
				outcome, f = OutcomeShared, old.fetch
				return old, false
			}
			if now.Before(old.expiresAt) {
				outcome, f = OutcomeHit, old.fetch
				return old, false
			}
		}
		outcome = OutcomeMiss
		f = &fetch{done: make(chan struct{})}
		return &entry{validSize: nTop, fetch: f}, false
	})
	if outcome == OutcomeMiss {
		c.wg.Add(1)
		// the fetch outlives any single caller; joiners still need its result
		go c.run(context.WithoutCancel(ctx), game, nTop, f)
	}
	c.mu.RUnlock()

	c.observe(game, outcome)
	if outcome != OutcomeHit {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := slices.Clone(core.TruncateTop(f.records, nTop))
	if out == nil {
		out = []core.ScoreRecord{}
	}
	return out, nil
}

func (c *Cache) run(ctx context.Context, game core.GameID, nTop int, f *fetch) {
	defer c.wg.Done()
	defer close(f.done)

	records, err := c.source.Top(ctx, game, nTop)
	if err != nil {
		f.err = fmt.Errorf("%w: %w", core.ErrCacheFetch, err)
		// drop the entry so the next call retries instead of joining a failure
		c.entries.Compute(game, func(old *entry, loaded bool) (*entry, bool) {
			if !loaded || old.fetch == f {
				return nil, true
			}
			return old, false
		})
		c.observe(game, OutcomeError)
		c.logger.Warn("rank cache fetch failed", "game", game, "top", nTop, "error", err)
		return
	}

	f.records = records
	expiresAt := c.now().Add(c.ttl)
	c.entries.Compute(game, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return nil, true
		}
		if old.fetch != f {
			// superseded by a newer fetch meanwhile
			return old, false
		}
		if c.ttl == 0 {
			return nil, true
		}
		return &entry{expiresAt: expiresAt, validSize: nTop, fetch: f}, false
	})
}

func (c *Cache) observe(game core.GameID, outcome Outcome) {
	if c.observer != nil {
		c.observer.ObserveCache(game, outcome)
	}
}

// Len returns the number of games with an entry, pending or populated.
func (c *Cache) Len() int { return c.entries.Size() }

// Close waits up to the close timeout for running fetches and drops every entry.
// A fetch still running after that is abandoned and reported in the error.
// Subsequent calls to Top return core.ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()
	timer := time.NewTimer(c.closeTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-drained:
	case <-timer.C:
		err = fmt.Errorf("rank cache close: fetches still running after %s: %w", c.closeTimeout, context.DeadlineExceeded)
		c.logger.Warn("rank cache shutdown timed out", "provider", "simple", "timeout", c.closeTimeout)
	}
	c.entries.Clear()
	c.logger.Debug("rank cache shutdown", "provider", "simple")
	return err
}
