package gamify

import (
	"context"
	"log/slog"
	"time"

	"github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/cache/passthrough"
	"github.com/borisprogrm/leaderboard-server/cache/simple"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/integrations/webhook"
	"github.com/borisprogrm/leaderboard-server/metrics"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

// Option configures the leaderboard service builder.
type Option func(*builder)

type builder struct {
	store   engine.ScoreStore
	cache   engine.RankCache
	noCache bool
	ttl     time.Duration
	mode    engine.DispatchMode
	hub     *realtime.Hub
	webhook *webhook.Sink
	metrics *metrics.Manager
	logger  *slog.Logger
}

// WithStore sets the score store.
func WithStore(s engine.ScoreStore) Option { return func(c *builder) { c.store = s } }

// WithCache installs a ready-made rank cache instead of the built-in one.
func WithCache(rc engine.RankCache) Option { return func(c *builder) { c.cache = rc } }

// WithCacheTTL sets the TTL of the built-in rank cache.
func WithCacheTTL(ttl time.Duration) Option { return func(c *builder) { c.ttl = ttl } }

// WithoutCache sends every Top straight to the store.
func WithoutCache() Option { return func(c *builder) { c.noCache = true } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *builder) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *builder) { c.hub = h } }

// WithWebhook posts all engine events to the sink's endpoints.
func WithWebhook(s *webhook.Sink) Option { return func(c *builder) { c.webhook = s } }

// WithMetrics instruments the store and the rank cache.
func WithMetrics(m *metrics.Manager) Option { return func(c *builder) { c.metrics = m } }

// WithLogger sets the logger handed to components built here.
func WithLogger(l *slog.Logger) Option {
	return func(c *builder) {
		if l != nil {
			c.logger = l
		}
	}
}

func newBuilder(opts []Option) *builder {
	cfg := &builder{mode: engine.DispatchAsync, logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// New builds a configured LeaderboardService. If not provided, defaults are used:
//   - store: in-memory
//   - cache: simple rank cache with TTL 0
//   - dispatch: async
func New(opts ...Option) *engine.LeaderboardService {
	return build(newBuilder(opts))
}

func build(cfg *builder) *engine.LeaderboardService {
	if cfg.store == nil {
		cfg.store = memory.New(memory.WithLogger(cfg.logger))
	}
	store := cfg.store
	if cfg.metrics != nil {
		store = cfg.metrics.InstrumentStore(store, BackendName(cfg.store))
	}

	cache := cfg.cache
	if cache == nil {
		if cfg.noCache {
			cache = passthrough.New(store)
		} else {
			cacheOpts := []simple.Option{simple.WithLogger(cfg.logger)}
			if cfg.metrics != nil {
				cacheOpts = append(cacheOpts, simple.WithObserver(cfg.metrics))
			}
			cache = simple.New(store, cfg.ttl, cacheOpts...)
		}
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewLeaderboardService(store, cache, bus)
	if cfg.hub != nil {
		// Bridge score events to realtime
		forward := func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) }
		bus.Subscribe(core.EventScoreSubmitted, forward)
		bus.Subscribe(core.EventScoreDeleted, forward)
	}
	if cfg.webhook != nil {
		bus.Subscribe(core.EventScoreSubmitted, cfg.webhook.OnEvent)
		bus.Subscribe(core.EventScoreDeleted, cfg.webhook.OnEvent)
	}
	return svc
}
