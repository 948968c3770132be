package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	wsadapter "github.com/borisprogrm/leaderboard-server/adapters/websocket"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/metrics"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

const maxBodyBytes = 64 << 10

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	// /Status and /healthz stay public.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup is how long an idle client bucket is kept (default 5m).
	RateLimitCleanup time.Duration
	// Metrics, if set, records per-route request counts and latency.
	Metrics *metrics.Manager
	// Logger receives server-side failures (defaults to slog.Default()).
	Logger *slog.Logger
}

// NewMux builds an http.Handler exposing the leaderboard API and WebSocket stream.
// Routes:
//   - POST {prefix}/leaderboard/SendScore   {gameId, userId, score, name?, params?}
//   - POST {prefix}/leaderboard/GetScore    {gameId, userId}
//   - POST {prefix}/leaderboard/DeleteScore {gameId, userId}
//   - POST {prefix}/leaderboard/GetTop      {gameId, nTop}
//   - GET  {prefix}/Status
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?gameId=...
func NewMux(svc *engine.LeaderboardService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &api{svc: svc, logger: opts.Logger}
	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		full := withPrefix(opts.PathPrefix, path)
		mux.Handle(method+" "+full, instrument(opts.Metrics, full, h))
	}

	route(http.MethodPost, "/leaderboard/SendScore", a.sendScore)
	route(http.MethodPost, "/leaderboard/GetScore", a.getScore)
	route(http.MethodPost, "/leaderboard/DeleteScore", a.deleteScore)
	route(http.MethodPost, "/leaderboard/GetTop", a.getTop)
	route(http.MethodGet, "/Status", a.status)
	route(http.MethodGet, "/status", a.status)
	route(http.MethodGet, "/healthz", a.healthCheck)

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub, wsadapter.WithLogger(opts.Logger)))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		public := []string{
			withPrefix(opts.PathPrefix, "/Status"),
			withPrefix(opts.PathPrefix, "/status"),
			withPrefix(opts.PathPrefix, "/healthz"),
		}
		handler = withAPIKeyAuth(handler, opts.APIKeys, public)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup))
	}
	return handler
}

type api struct {
	svc    *engine.LeaderboardService
	logger *slog.Logger
}

type userRequest struct {
	GameID core.GameID `json:"gameId"`
	UserID core.UserID `json:"userId"`
}

func (r userRequest) validate() error {
	if err := core.ValidateGameID(r.GameID); err != nil {
		return err
	}
	return core.ValidateUserID(r.UserID)
}

type sendScoreRequest struct {
	GameID core.GameID `json:"gameId"`
	UserID core.UserID `json:"userId"`
	Score  *float64    `json:"score"`
	Name   *string     `json:"name"`
	Params *string     `json:"params"`
}

type getTopRequest struct {
	GameID core.GameID `json:"gameId"`
	NTop   *int        `json:"nTop"`
}

type result struct {
	Result any `json:"result"`
}

func (a *api) sendScore(w http.ResponseWriter, r *http.Request) {
	var req sendScoreRequest
	if !decode(w, r, &req) {
		return
	}
	if err := (userRequest{GameID: req.GameID, UserID: req.UserID}).validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.Score == nil {
		writeValidationError(w, errors.New("score is required"))
		return
	}
	props := core.ScoreProps{Score: *req.Score}
	if req.Name != nil {
		props.Name = *req.Name
	}
	if req.Params != nil {
		props.Params = *req.Params
	}
	if err := props.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := a.svc.PutUserScore(r.Context(), req.GameID, req.UserID, props); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result{Result: "success"})
}

func (a *api) getScore(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	rec, err := a.svc.GetUserScore(r.Context(), req.GameID, req.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if rec == nil {
		writeJSON(w, result{Result: struct{}{}})
		return
	}
	writeJSON(w, result{Result: rec.ScoreProps})
}

func (a *api) deleteScore(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := a.svc.DeleteUserScore(r.Context(), req.GameID, req.UserID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result{Result: "success"})
}

func (a *api) getTop(w http.ResponseWriter, r *http.Request) {
	var req getTopRequest
	if !decode(w, r, &req) {
		return
	}
	if err := core.ValidateGameID(req.GameID); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.NTop == nil {
		writeValidationError(w, errors.New("nTop is required"))
		return
	}
	if err := core.ValidateTop(*req.NTop); err != nil {
		writeValidationError(w, err)
		return
	}
	top, err := a.svc.GetTop(r.Context(), req.GameID, *req.NTop)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if top == nil {
		top = []core.ScoreRecord{}
	}
	writeJSON(w, result{Result: top})
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, result{Result: "success"})
}

// healthCheck verifies the store answers a point read.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	// reading an id that is never written has no side effects
	_, err := a.svc.GetUserScore(r.Context(), "healthcheck", "probe")

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		a.logger.Error("health check failed", "error", err)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		writeJSONStatus(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, status)
}

// Helpers

// decode reads a single JSON object, rejecting unknown fields and trailing data.
// It writes the 400 response itself and reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error(), nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must contain a single JSON object", nil)
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
}

func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if core.IsValidationError(err) {
		writeValidationError(w, err)
		return
	}
	a.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
