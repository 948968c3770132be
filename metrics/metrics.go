// Package metrics exposes Prometheus metrics for the leaderboard service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/borisprogrm/leaderboard-server/cache/simple"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
)

// Manager owns a private registry and the service's collectors.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	runtime   bool

	storeLatency  *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms (seconds).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) { m.runtime = true }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "leaderboard",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(m.registry)
	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Score store operation latency by backend, operation and result",
		Buckets:   m.buckets,
	}, []string{"backend", "op", "result"})

	m.cacheRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "rank_cache",
		Name:      "requests_total",
		Help:      "Rank cache Top calls by outcome (hit, shared, miss, error)",
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCache implements simple.Observer.
func (m *Manager) ObserveCache(_ core.GameID, outcome simple.Outcome) {
	m.cacheRequests.WithLabelValues(string(outcome)).Inc()
}

// ObserveHTTP records one finished request.
func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Manager) observeStore(backend, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeLatency.WithLabelValues(backend, op, result).Observe(time.Since(start).Seconds())
}

// InstrumentStore wraps store so every call records its latency under backend.
func (m *Manager) InstrumentStore(store engine.ScoreStore, backend string) engine.ScoreStore {
	return &instrumentedStore{next: store, backend: backend, m: m}
}

type instrumentedStore struct {
	next    engine.ScoreStore
	backend string
	m       *Manager
}

func (s *instrumentedStore) Put(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	start := time.Now()
	err := s.next.Put(ctx, game, user, props)
	s.m.observeStore(s.backend, "put", start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, game core.GameID, user core.UserID) error {
	start := time.Now()
	err := s.next.Delete(ctx, game, user)
	s.m.observeStore(s.backend, "delete", start, err)
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	start := time.Now()
	rec, err := s.next.Get(ctx, game, user)
	s.m.observeStore(s.backend, "get", start, err)
	return rec, err
}

func (s *instrumentedStore) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	start := time.Now()
	records, err := s.next.Top(ctx, game, nTop)
	s.m.observeStore(s.backend, "top", start, err)
	return records, err
}

func (s *instrumentedStore) Close() error { return s.next.Close() }
