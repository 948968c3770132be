package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/borisprogrm/leaderboard-server/api/httpapi"
	"github.com/borisprogrm/leaderboard-server/config"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/gamify"
	"github.com/borisprogrm/leaderboard-server/metrics"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Metrics *metrics.Manager
	Service *engine.LeaderboardService
	Handler http.Handler
	Server  *http.Server
}

// Close releases the service and the realtime hub. The HTTP server must be stopped first.
func (a *App) Close() error {
	a.Hub.Close()
	return a.Service.Shutdown()
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("LEADERBOARD_CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	var store config.SecretStore = config.NewEnvironmentSecretStore()
	if dir := os.Getenv("LEADERBOARD_SECRETS_DIR"); dir != "" {
		store = config.FileSecretStore{Dir: dir}
	}
	if err := cfg.ResolveSecrets(ctx, store); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideMetrics(cfg *config.Config) *metrics.Manager {
	if !cfg.Metrics.Enabled {
		return nil
	}
	var opts []metrics.Option
	if cfg.Metrics.CollectSystem {
		opts = append(opts, metrics.WithRuntimeCollectors())
	}
	return metrics.NewManager(opts...)
}

func provideService(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, m *metrics.Manager) (*engine.LeaderboardService, error) {
	opts := []gamify.Option{
		gamify.WithRealtime(hub),
		gamify.WithLogger(logger),
		gamify.WithDispatchMode(engine.DispatchAsync),
	}
	if m != nil {
		opts = append(opts, gamify.WithMetrics(m))
	}
	svc, err := gamify.FromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("leaderboard service initialized",
		"storage_adapter", cfg.Storage.Adapter,
		"cache_provider", cfg.Cache.Provider,
		"cache_ttl", cfg.Cache.TTL)
	return svc, nil
}

func provideHandler(svc *engine.LeaderboardService, hub *realtime.Hub, cfg *config.Config, logger *slog.Logger, m *metrics.Manager) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		Metrics:          m,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// newMetricsServer exposes the registry on its own listener, or returns nil when metrics are off.
func newMetricsServer(cfg *config.Config, m *metrics.Manager) *http.Server {
	if m == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, m.Handler())
	return &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(logOutput(cfg.Logging.Output), opts)
	case "json":
		handler = slog.NewJSONHandler(logOutput(cfg.Logging.Output), opts)
	default:
		handler = slog.NewJSONHandler(logOutput(cfg.Logging.Output), opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func logOutput(output string) io.Writer {
	if output == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
