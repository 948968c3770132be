package engine

import (
	"context"

	"github.com/borisprogrm/leaderboard-server/core"
)

// ScoreStore abstracts the authoritative persistence of game boards.
// Every backend must produce the same ranking semantics:
//   - Put replaces any previous value for (game, user) in one step
//   - Delete is idempotent
//   - Get returns nil, nil when the record is absent
//   - Top returns at most nTop records in descending score order, and an
//     empty slice when the board has no members or nTop <= 0
//
// Stores never retry; backend failures match core.ErrStoreUnavailable.
type ScoreStore interface {
	Put(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error
	Delete(ctx context.Context, game core.GameID, user core.UserID) error
	Get(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error)
	Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error)
	Close() error
}

// RankCache serves Top queries from derived, disposable projections of a ScoreStore.
type RankCache interface {
	Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error)
	Close() error
}
