package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Sink posts score events to configured HTTP endpoints.
// Delivery is best effort: a failed endpoint is logged and counted, never retried.
type Sink struct {
	client    *http.Client
	endpoints []string
	logger    *slog.Logger
	failures  atomic.Uint64
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Failures returns the number of failed deliveries so far.
func (s *Sink) Failures() uint64 { return s.failures.Load() }

// OnEvent posts the event JSON to all endpoints. Its signature matches engine.EventBus handlers.
func (s *Sink) OnEvent(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("encode webhook event", "error", err)
		return
	}
	// the write already succeeded; the caller's cancellation must not abort delivery
	ctx = context.WithoutCancel(ctx)
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.failures.Add(1)
			s.logger.Warn("webhook delivery failed", "endpoint", ep, "event", e.Type, "game_id", e.GameID, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
