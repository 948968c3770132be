package passthrough

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/core"
)

func TestPassthroughForwardsEveryCall(t *testing.T) {
	store := memory.New(memory.WithDebug(true))
	c := New(store)
	ctx := context.Background()

	top, err := c.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	require.NoError(t, store.Put(ctx, "game1", "u1", core.ScoreProps{Score: 5}))
	top, err = c.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 1, "a write is visible immediately without caching")

	require.NoError(t, c.Close())
	_, err = c.Top(ctx, "game1", 10)
	assert.ErrorIs(t, err, core.ErrClosed)

	// the store stays usable
	_, err = store.Get(ctx, "game1", "u1")
	assert.NoError(t, err)
}
