package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the leaderboard HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8415).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// SendScore stores props as the user's score on the game board, replacing any previous value.
func (c *Client) SendScore(ctx context.Context, gameID, userID string, props core.ScoreProps) error {
	if err := checkIDs(gameID, userID); err != nil {
		return err
	}
	body := struct {
		GameID string  `json:"gameId"`
		UserID string  `json:"userId"`
		Score  float64 `json:"score"`
		Name   string  `json:"name,omitempty"`
		Params string  `json:"params,omitempty"`
	}{gameID, userID, props.Score, props.Name, props.Params}
	var out envelope[string]
	return c.post(ctx, "/leaderboard/SendScore", body, &out)
}

// GetScore returns the user's score, or nil when the user has none.
func (c *Client) GetScore(ctx context.Context, gameID, userID string) (*core.ScoreProps, error) {
	if err := checkIDs(gameID, userID); err != nil {
		return nil, err
	}
	var out envelope[*struct {
		Score  *float64 `json:"score"`
		Name   string   `json:"name"`
		Params string   `json:"params"`
	}]
	if err := c.post(ctx, "/leaderboard/GetScore", userBody(gameID, userID), &out); err != nil {
		return nil, err
	}
	if out.Result == nil || out.Result.Score == nil {
		return nil, nil
	}
	return &core.ScoreProps{Score: *out.Result.Score, Name: out.Result.Name, Params: out.Result.Params}, nil
}

// DeleteScore removes the user's score. Deleting a missing score is not an error.
func (c *Client) DeleteScore(ctx context.Context, gameID, userID string) error {
	if err := checkIDs(gameID, userID); err != nil {
		return err
	}
	var out envelope[string]
	return c.post(ctx, "/leaderboard/DeleteScore", userBody(gameID, userID), &out)
}

// GetTop returns up to nTop records in descending score order.
func (c *Client) GetTop(ctx context.Context, gameID string, nTop int) ([]core.ScoreRecord, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, ErrEmptyGameID
	}
	body := struct {
		GameID string `json:"gameId"`
		NTop   int    `json:"nTop"`
	}{gameID, nTop}
	var out envelope[[]core.ScoreRecord]
	if err := c.post(ctx, "/leaderboard/GetTop", body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Status calls GET /Status and returns the result string ("success" when up).
func (c *Client) Status(ctx context.Context) (string, error) {
	var out envelope[string]
	if err := c.get(ctx, "/Status", &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.get(ctx, "/healthz", &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// With gameIDs set, only events from those boards are delivered.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, gameIDs ...string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(gameIDs) > 0 {
		q := url.Values{"gameId": gameIDs}
		target += "?" + q.Encode()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadJSON
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	c.applyHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func checkIDs(gameID, userID string) error {
	if strings.TrimSpace(gameID) == "" {
		return ErrEmptyGameID
	}
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

func userBody(gameID, userID string) any {
	return struct {
		GameID string `json:"gameId"`
		UserID string `json:"userId"`
	}{gameID, userID}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
