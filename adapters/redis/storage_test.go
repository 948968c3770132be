package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/adapters/storetest"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
)

// newTestClient spins up a miniredis server and returns a client plus the server.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) engine.ScoreStore {
		client, _ := newTestClient(t)
		return NewWithClient(client)
	})
}

func TestShardedStoreContract(t *testing.T) {
	for _, shards := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("shards=%d", shards), func(t *testing.T) {
			storetest.Run(t, func(t *testing.T) engine.ScoreStore {
				client, _ := newTestClient(t)
				store, err := NewShardedWithClient(client, shards)
				require.NoError(t, err)
				return store
			})
		})
	}
}

func TestStore_Layout(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "game1", "user1", core.ScoreProps{Score: 84, Name: "Jack", Params: "p1"}))

	score, err := mr.ZScore("board:{game1}", "user1")
	require.NoError(t, err)
	assert.Equal(t, float64(84), score)
	assert.Equal(t, "Jack", mr.HGet("board:{game1}:user:user1", "nm"))
	assert.Equal(t, "p1", mr.HGet("board:{game1}:user:user1", "pl"))

	// replacing without metadata removes the hash entirely
	require.NoError(t, store.Put(ctx, "game1", "user1", core.ScoreProps{Score: 90}))
	assert.False(t, mr.Exists("board:{game1}:user:user1"))

	require.NoError(t, store.Delete(ctx, "game1", "user1"))
	assert.False(t, mr.Exists("board:{game1}"))
}

func TestStore_BackendFailure(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	mr.SetError("LOADING server is loading")
	defer mr.SetError("")

	err := store.Put(ctx, "game1", "user1", core.ScoreProps{Score: 1})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	_, err = store.Get(ctx, "game1", "user1")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	top, err := store.Top(ctx, "game1", 10)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Nil(t, top)
}

func TestStore_TopMetadataFailure(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "game1", "user1", core.ScoreProps{Score: 10}))
	require.NoError(t, store.Put(ctx, "game1", "user2", core.ScoreProps{Score: 5}))
	// a metadata key of the wrong type makes one HGETALL in the batch fail
	require.NoError(t, mr.Set("board:{game1}:user:user2", "not-a-hash"))

	top, err := store.Top(ctx, "game1", 10)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Nil(t, top)
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, 0, ShardFor("anyone", 1))
	assert.Equal(t, 0, ShardFor("anyone", 0))
	for _, n := range []int{2, 7, 100} {
		for i := 0; i < 50; i++ {
			user := core.UserID(fmt.Sprintf("user%d", i))
			shard := ShardFor(user, n)
			assert.GreaterOrEqual(t, shard, 0)
			assert.Less(t, shard, n)
			assert.Equal(t, shard, ShardFor(user, n), "mapping must be stable")
		}
	}
}

func TestNewShardedRejectsShardCount(t *testing.T) {
	client, _ := newTestClient(t)
	for _, n := range []int{0, -1, 101} {
		_, err := NewShardedWithClient(client, n)
		assert.ErrorIs(t, err, core.ErrInvalidConfig, "shards=%d", n)
	}
	_, err := NewSharded(Config{Addr: "127.0.0.1:1"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestShardedStore_SpreadsAcrossShards(t *testing.T) {
	client, mr := newTestClient(t)
	store, err := NewShardedWithClient(client, 4)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		user := core.UserID(fmt.Sprintf("user%d", i))
		require.NoError(t, store.Put(ctx, "game1", user, core.ScoreProps{Score: float64(i)}))
		score, err := mr.ZScore(shardBoardKey("game1", ShardFor(user, 4)), string(user))
		require.NoError(t, err)
		assert.Equal(t, float64(i), score)
	}
	used := 0
	for shard := 0; shard < 4; shard++ {
		if mr.Exists(shardBoardKey("game1", shard)) {
			used++
		}
	}
	assert.Greater(t, used, 1, "expected users on more than one shard")
}

// TestShardedTopMatchesSingleStore checks that merging per-shard tops gives
// exactly the single-store answer for any shard count.
func TestShardedTopMatchesSingleStore(t *testing.T) {
	ctx := context.Background()
	reference := memory.New(memory.WithDebug(true))
	const users = 120
	for i := 0; i < users; i++ {
		// distinct scores so the expected order is unambiguous
		props := core.ScoreProps{Score: float64((i * 37) % 1000), Name: fmt.Sprintf("n%d", i)}
		require.NoError(t, reference.Put(ctx, "game1", core.UserID(fmt.Sprintf("user%d", i)), props))
	}

	for _, shards := range []int{1, 2, 3, 10, 100} {
		client, _ := newTestClient(t)
		store, err := NewShardedWithClient(client, shards)
		require.NoError(t, err)
		all, err := reference.Top(ctx, "game1", users)
		require.NoError(t, err)
		for _, r := range all {
			require.NoError(t, store.Put(ctx, "game1", r.UserID, r.ScoreProps))
		}
		for _, k := range []int{1, 5, 30, users, users + 10} {
			want, err := reference.Top(ctx, "game1", k)
			require.NoError(t, err)
			got, err := store.Top(ctx, "game1", k)
			require.NoError(t, err)
			assert.Equal(t, want, got, "shards=%d k=%d", shards, k)
		}
	}
}

func TestShardedStore_ShardFailureFailsTop(t *testing.T) {
	client, mr := newTestClient(t)
	store, err := NewShardedWithClient(client, 3)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Put(ctx, "game1", core.UserID(fmt.Sprintf("user%d", i)), core.ScoreProps{Score: float64(i)}))
	}
	// break one shard: its key now holds a string instead of a sorted set
	mr.Del(shardBoardKey("game1", 2))
	require.NoError(t, mr.Set(shardBoardKey("game1", 2), "broken"))

	top, err := store.Top(ctx, "game1", 5)
	assert.ErrorIs(t, err, core.ErrPartialShardFailure)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Nil(t, top)
	assert.False(t, errors.Is(err, core.ErrCacheFetch))
}
