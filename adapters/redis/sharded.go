package redis

import (
	"cmp"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Shard count bounds accepted by NewSharded.
const (
	MinShards = 1
	MaxShards = 100
)

// ShardFor maps a user to one of n shards. The mapping depends only on
// (user, n), never on insertion order.
func ShardFor(user core.UserID, n int) int {
	if n <= 1 {
		return 0
	}
	sum := sha1.Sum([]byte(user))
	return int(binary.BigEndian.Uint32(sum[16:20]) % uint32(n))
}

// ShardedStore splits every board over several sorted sets to avoid a single hot key.
// Data structure:
//   - board:{game_id:shard} -> sorted set, member user_id, score
//   - board:{game_id:shard}:user:{user_id} -> hash with nm (name) and pl (params)
type ShardedStore struct {
	client redis.UniversalClient
	shards int
	logger *slog.Logger
}

// NewSharded connects to Redis and returns a sharded store. config.Shards must be in [1,100].
func NewSharded(config Config, opts ...Option) (*ShardedStore, error) {
	if err := validateShards(config.Shards); err != nil {
		return nil, err
	}
	client, err := Connect(config)
	if err != nil {
		return nil, err
	}
	return NewShardedWithClient(client, config.Shards, opts...)
}

// NewShardedWithClient creates a sharded store using an existing Redis client.
func NewShardedWithClient(client redis.UniversalClient, shards int, opts ...Option) (*ShardedStore, error) {
	if err := validateShards(shards); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	o.logger.Debug("score store initialized", "backend", "redis-sharded", "shards", shards)
	return &ShardedStore{client: client, shards: shards, logger: o.logger}, nil
}

func validateShards(n int) error {
	if n < MinShards || n > MaxShards {
		return fmt.Errorf("%w: shards must be between %d and %d, got %d", core.ErrInvalidConfig, MinShards, MaxShards, n)
	}
	return nil
}

// Shards returns the configured shard count.
func (s *ShardedStore) Shards() int { return s.shards }

func (s *ShardedStore) Close() error {
	err := s.client.Close()
	s.logger.Debug("score store shutdown", "backend", "redis-sharded")
	return err
}

func shardBoardKey(game core.GameID, shard int) string {
	return fmt.Sprintf("board:{%s:%d}", game, shard)
}

func shardUserKey(game core.GameID, shard int, user core.UserID) string {
	return fmt.Sprintf("board:{%s:%d}:user:%s", game, shard, user)
}

func (s *ShardedStore) keys(game core.GameID, user core.UserID) (zkey, hkey string) {
	shard := ShardFor(user, s.shards)
	return shardBoardKey(game, shard), shardUserKey(game, shard, user)
}

func (s *ShardedStore) Put(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	zkey, hkey := s.keys(game, user)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		writeRecord(ctx, pipe, zkey, hkey, user, props)
		return nil
	})
	return core.StoreError("redis sharded put", err)
}

func (s *ShardedStore) Delete(ctx context.Context, game core.GameID, user core.UserID) error {
	zkey, hkey := s.keys(game, user)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, zkey, string(user))
		pipe.Del(ctx, hkey)
		return nil
	})
	return core.StoreError("redis sharded delete", err)
}

func (s *ShardedStore) Get(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	zkey, hkey := s.keys(game, user)
	return readRecord(ctx, s.client, zkey, hkey, user)
}

// Top asks every shard for its own top nTop in parallel, merges and truncates.
// The global top nTop is always contained in the union of the per-shard tops.
// Any failed shard fails the call; partial results are never returned.
func (s *ShardedStore) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	perShard := make([][]redis.Z, s.shards)
	g, gctx := errgroup.WithContext(ctx)
	for shard := 0; shard < s.shards; shard++ {
		g.Go(func() error {
			entries, err := s.client.ZRevRangeWithScores(gctx, shardBoardKey(game, shard), 0, int64(nTop-1)).Result()
			if err != nil {
				return fmt.Errorf("shard %d: %w", shard, err)
			}
			perShard[shard] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPartialShardFailure, core.StoreError("redis sharded top", err))
	}

	var merged []redis.Z
	for _, entries := range perShard {
		merged = append(merged, entries...)
	}
	slices.SortStableFunc(merged, func(a, b redis.Z) int { return cmp.Compare(b.Score, a.Score) })
	if len(merged) > nTop {
		merged = merged[:nTop]
	}
	return fetchRecords(ctx, s.client, merged, func(user core.UserID) string {
		return shardUserKey(game, ShardFor(user, s.shards), user)
	})
}
