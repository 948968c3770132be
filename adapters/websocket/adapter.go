package websocket

import (
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	bufferSize = 256
)

// Option configures the WebSocket handler.
type Option func(*options)

type options struct {
	checkOrigin func(*http.Request) bool
	logger      *slog.Logger
}

// WithOriginCheck overrides the default, which accepts every origin.
func WithOriginCheck(fn func(*http.Request) bool) Option {
	return func(o *options) { o.checkOrigin = fn }
}

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Handler returns an http.Handler that upgrades to WebSocket and streams score events from the hub.
// Repeating the gameId query parameter restricts the stream to those boards.
func Handler(hub *realtime.Hub, opts ...Option) http.Handler {
	o := options{checkOrigin: func(*http.Request) bool { return true }, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: o.checkOrigin}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var games []core.GameID
		for _, g := range r.URL.Query()["gameId"] {
			if err := core.ValidateGameID(core.GameID(g)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			games = append(games, core.GameID(g))
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			o.logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(bufferSize, games...)
		defer hub.Unsubscribe(id)

		// the read pump only services control frames; it ends when the client goes away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-ch:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(gorillaws.CloseMessage, gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "server shutting down"))
					return
				}
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
