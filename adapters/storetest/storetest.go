// Package storetest holds the behaviour every engine.ScoreStore must share.
// Backend packages call Run from their tests with a factory for a fresh, empty store.
package storetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) engine.ScoreStore

// Run executes the shared contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyBoard", func(t *testing.T) { testEmptyBoard(t, newStore(t)) })
	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, newStore(t)) })
	t.Run("ReplaceSemantics", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("IdempotentDelete", func(t *testing.T) { testIdempotentDelete(t, newStore(t)) })
	t.Run("TopScenario", func(t *testing.T) { testTopScenario(t, newStore(t)) })
	t.Run("TopOrdering", func(t *testing.T) { testTopOrdering(t, newStore(t)) })
	t.Run("BoardsAreIsolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
}

func testEmptyBoard(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	rec, err := s.Get(ctx, "game1", "user1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	top, err := s.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)
}

func testPutGetDelete(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	props := core.ScoreProps{Score: 1500, Name: "John", Params: `{"some_param":"some_value"}`}
	require.NoError(t, s.Put(ctx, "game1", "user1", props))

	rec, err := s.Get(ctx, "game1", "user1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.NewRecord("user1", props), *rec)

	require.NoError(t, s.Delete(ctx, "game1", "user1"))
	rec, err = s.Get(ctx, "game1", "user1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	top, err := s.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func testReplace(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "game1", "u", core.ScoreProps{Score: 10, Params: "p"}))
	require.NoError(t, s.Put(ctx, "game1", "u", core.ScoreProps{Score: 20, Name: "A"}))

	rec, err := s.Get(ctx, "game1", "u")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.ScoreProps{Score: 20, Name: "A"}, rec.ScoreProps)

	top, err := s.Top(ctx, "game1", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, core.NewRecord("u", core.ScoreProps{Score: 20, Name: "A"}), top[0])
}

func testIdempotentDelete(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, "game1", "ghost"))
	require.NoError(t, s.Delete(ctx, "game1", "ghost"))
	rec, err := s.Get(ctx, "game1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func testTopScenario(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	u1 := core.NewRecord("u1", core.ScoreProps{Score: 84, Name: "Jack", Params: "some_payload_1"})
	u2 := core.NewRecord("u2", core.ScoreProps{Score: 52, Params: "some_payload_2"})
	u3 := core.NewRecord("u3", core.ScoreProps{Score: 31, Name: "Tom"})
	for _, r := range []core.ScoreRecord{u3, u1, u2} {
		require.NoError(t, s.Put(ctx, "game1", r.UserID, r.ScoreProps))
	}

	top, err := s.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.ScoreRecord{u1, u2, u3}, top)

	top, err = s.Top(ctx, "game1", 2)
	require.NoError(t, err)
	assert.Equal(t, []core.ScoreRecord{u1, u2}, top)

	top, err = s.Top(ctx, "game1", 0)
	require.NoError(t, err)
	assert.Empty(t, top)

	require.NoError(t, s.Put(ctx, "game1", "u3", core.ScoreProps{Score: 150, Name: "Tom"}))
	top, err = s.Top(ctx, "game1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, core.UserID("u3"), top[0].UserID)
}

// testTopOrdering checks that Top(k) has exactly min(N, k) entries in
// non-increasing score order and holds the k best scores.
func testTopOrdering(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 60
	scores := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		score := float64(rng.IntN(10_000))
		scores = append(scores, score)
		require.NoError(t, s.Put(ctx, "bulk", core.UserID(fmt.Sprintf("user%d", i)), core.ScoreProps{Score: score}))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	for _, k := range []int{1, 7, 25, n, n + 40} {
		top, err := s.Top(ctx, "bulk", k)
		require.NoError(t, err)
		want := min(n, k)
		require.Len(t, top, want, "k=%d", k)
		for i := range top {
			assert.Equal(t, scores[i], top[i].Score, "k=%d position %d", k, i)
			if i > 0 {
				assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
			}
		}
	}
}

func testIsolation(t *testing.T, s engine.ScoreStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "game1", "u1", core.ScoreProps{Score: 1}))
	require.NoError(t, s.Put(ctx, "game2", "u1", core.ScoreProps{Score: 2}))

	rec, err := s.Get(ctx, "game1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, float64(1), rec.Score)

	require.NoError(t, s.Delete(ctx, "game2", "u1"))
	top, err := s.Top(ctx, "game1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 1)
	top, err = s.Top(ctx, "game2", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
