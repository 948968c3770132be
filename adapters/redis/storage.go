package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"LEADERBOARD_REDIS_ADDR"`
	ClusterAddrs []string      `json:"cluster_addrs,omitempty" env:"LEADERBOARD_REDIS_CLUSTER_ADDRS"`
	Password     string        `json:"password,omitempty" env:"LEADERBOARD_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"LEADERBOARD_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"LEADERBOARD_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"LEADERBOARD_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"LEADERBOARD_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"LEADERBOARD_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"LEADERBOARD_REDIS_WRITE_TIMEOUT"`
	// Shards is the number of partitions per board used by the sharded store (1-100).
	Shards int `json:"shards,omitempty" env:"LEADERBOARD_REDIS_SHARDS"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Option configures a Redis-backed store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connect opens a client for config and verifies it with a PING.
// A standalone client is used unless ClusterAddrs is set.
func Connect(config Config) (redis.UniversalClient, error) {
	var client redis.UniversalClient
	if len(config.ClusterAddrs) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        config.ClusterAddrs,
			Password:     config.Password,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         config.Addr,
			Password:     config.Password,
			DB:           config.DB,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.StoreError("connect to redis", err)
	}
	return client, nil
}

// Store keeps each board in one sorted set plus a hash per user for name/params.
// Data structure:
//   - board:{game_id} -> sorted set, member user_id, score
//   - board:{game_id}:user:{user_id} -> hash with nm (name) and pl (params)
//
// The hash tag keeps a board and its metadata in one cluster slot so writes can use MULTI.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// New creates a new Redis-backed score store with the provided configuration
func New(config Config, opts ...Option) (*Store, error) {
	client, err := Connect(config)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client redis.UniversalClient, opts ...Option) *Store {
	o := buildOptions(opts)
	o.logger.Debug("score store initialized", "backend", "redis")
	return &Store{client: client, logger: o.logger}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	err := s.client.Close()
	s.logger.Debug("score store shutdown", "backend", "redis")
	return err
}

// boardKey generates the Redis key for a board's sorted set
func boardKey(game core.GameID) string {
	return fmt.Sprintf("board:{%s}", game)
}

// userKey generates the Redis key for a user's metadata hash on a board
func userKey(game core.GameID, user core.UserID) string {
	return fmt.Sprintf("board:{%s}:user:%s", game, user)
}

// Put replaces the record in one MULTI/EXEC so readers never see a half-written value.
func (s *Store) Put(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		writeRecord(ctx, pipe, boardKey(game), userKey(game, user), user, props)
		return nil
	})
	return core.StoreError("redis put", err)
}

// Delete removes the sorted set member and its metadata hash.
func (s *Store) Delete(ctx context.Context, game core.GameID, user core.UserID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, boardKey(game), string(user))
		pipe.Del(ctx, userKey(game, user))
		return nil
	})
	return core.StoreError("redis delete", err)
}

func (s *Store) Get(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	return readRecord(ctx, s.client, boardKey(game), userKey(game, user), user)
}

// Top reads the head of the sorted set, then fetches metadata for exactly those members.
func (s *Store) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, boardKey(game), 0, int64(nTop-1)).Result()
	if err != nil {
		return nil, core.StoreError("redis top", err)
	}
	return fetchRecords(ctx, s.client, entries, func(user core.UserID) string { return userKey(game, user) })
}

// Metadata hash fields.
const (
	fieldName   = "nm"
	fieldParams = "pl"
)

func writeRecord(ctx context.Context, pipe redis.Pipeliner, zkey, hkey string, user core.UserID, props core.ScoreProps) {
	// drop old metadata first so absent fields do not survive the replace
	pipe.Del(ctx, hkey)
	fields := make(map[string]any, 2)
	if props.Name != "" {
		fields[fieldName] = props.Name
	}
	if props.Params != "" {
		fields[fieldParams] = props.Params
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, hkey, fields)
	}
	pipe.ZAdd(ctx, zkey, redis.Z{Score: props.Score, Member: string(user)})
}

func readRecord(ctx context.Context, client redis.UniversalClient, zkey, hkey string, user core.UserID) (*core.ScoreRecord, error) {
	var (
		scoreCmd *redis.FloatCmd
		metaCmd  *redis.MapStringStringCmd
	)
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		scoreCmd = pipe.ZScore(ctx, zkey, string(user))
		metaCmd = pipe.HGetAll(ctx, hkey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, core.StoreError("redis get", err)
	}
	score, err := scoreCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StoreError("redis get", err)
	}
	fields, err := metaCmd.Result()
	if err != nil {
		return nil, core.StoreError("redis get", err)
	}
	rec := core.NewRecord(user, propsFromFields(score, fields))
	return &rec, nil
}

// fetchRecords loads metadata for the ranked entries in one pipeline.
// A failure of any single command fails the whole call.
func fetchRecords(ctx context.Context, client redis.UniversalClient, entries []redis.Z, hashKey func(core.UserID) string) ([]core.ScoreRecord, error) {
	if len(entries) == 0 {
		return []core.ScoreRecord{}, nil
	}
	users := make([]core.UserID, len(entries))
	cmds := make([]*redis.MapStringStringCmd, len(entries))
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, z := range entries {
			users[i] = memberID(z)
			cmds[i] = pipe.HGetAll(ctx, hashKey(users[i]))
		}
		return nil
	})
	if err != nil {
		return nil, core.StoreError("redis top metadata", err)
	}
	out := make([]core.ScoreRecord, 0, len(entries))
	for i, z := range entries {
		fields, err := cmds[i].Result()
		if err != nil {
			return nil, core.StoreError("redis top metadata", err)
		}
		out = append(out, core.NewRecord(users[i], propsFromFields(z.Score, fields)))
	}
	return out, nil
}

func propsFromFields(score float64, fields map[string]string) core.ScoreProps {
	return core.ScoreProps{Score: score, Name: fields[fieldName], Params: fields[fieldParams]}
}

func memberID(z redis.Z) core.UserID {
	if s, ok := z.Member.(string); ok {
		return core.UserID(s)
	}
	return core.UserID(fmt.Sprint(z.Member))
}
