package gamify

import (
	"fmt"
	"log/slog"

	"github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/adapters/redis"
	"github.com/borisprogrm/leaderboard-server/adapters/sqlx"
	"github.com/borisprogrm/leaderboard-server/config"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/integrations/webhook"
)

// NewStore creates the score store selected by cfg.Adapter.
func NewStore(cfg config.StorageConfig, debug bool, logger *slog.Logger) (engine.ScoreStore, error) {
	switch cfg.Adapter {
	case config.AdapterMemory:
		return memory.New(memory.WithDebug(debug), memory.WithLogger(logger)), nil
	case config.AdapterRedis:
		s, err := redis.New(cfg.Redis, redis.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.AdapterRedisSharded:
		s, err := redis.NewSharded(cfg.Redis, redis.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.AdapterSQL:
		s, err := sqlx.New(cfg.SQL, sqlx.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage adapter %q", core.ErrInvalidConfig, cfg.Adapter)
	}
}

// FromConfig builds the store, cache and webhook sink described by cfg, then
// applies opts (realtime hub, metrics, logger) on top.
func FromConfig(cfg *config.Config, opts ...Option) (*engine.LeaderboardService, error) {
	c := newBuilder(opts)
	store, err := NewStore(cfg.Storage, cfg.Debug, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create %s score store: %w", cfg.Storage.Adapter, err)
	}
	c.store = store
	c.ttl = cfg.Cache.TTL
	if len(cfg.Webhooks.Endpoints) > 0 && c.webhook == nil {
		c.webhook = webhook.New(cfg.Webhooks.Endpoints,
			webhook.WithTimeout(cfg.Webhooks.Timeout),
			webhook.WithLogger(c.logger))
	}
	switch cfg.Cache.Provider {
	case config.CacheSimple:
	case config.CacheNone:
		c.noCache = true
	default:
		_ = store.Close()
		return nil, fmt.Errorf("%w: unknown cache provider %q", core.ErrInvalidConfig, cfg.Cache.Provider)
	}
	return build(c), nil
}

// BackendName labels a store for logs and metrics.
func BackendName(s engine.ScoreStore) string {
	switch s.(type) {
	case *memory.Store:
		return config.AdapterMemory
	case *redis.Store:
		return config.AdapterRedis
	case *redis.ShardedStore:
		return config.AdapterRedisSharded
	case *sqlx.Store:
		return config.AdapterSQL
	default:
		return "custom"
	}
}
