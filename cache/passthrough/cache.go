// Package passthrough is the "none" rank cache provider: every Top goes to the store.
package passthrough

import (
	"context"
	"sync/atomic"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Source is the ranked read being forwarded to.
type Source interface {
	Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error)
}

type Cache struct {
	source Source
	closed atomic.Bool
}

func New(source Source) *Cache { return &Cache{source: source} }

func (c *Cache) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if c.closed.Load() {
		return nil, core.ErrClosed
	}
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	return c.source.Top(ctx, game, nTop)
}

// Close does not close the source; the store has its own lifecycle.
func (c *Cache) Close() error {
	c.closed.Store(true)
	return nil
}
