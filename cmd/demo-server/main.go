package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	mem "github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/api/httpapi"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/gamify"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

const demoGame core.GameID = "demo"

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	hub := realtime.NewHub()
	svc := gamify.New(
		gamify.WithStore(mem.New(mem.WithDebug(true), mem.WithLogger(logger))),
		gamify.WithCacheTTL(time.Second),
		gamify.WithDispatchMode(engine.DispatchAsync),
		gamify.WithRealtime(hub),
		gamify.WithLogger(logger),
	)
	defer svc.Shutdown()
	defer hub.Close()

	ctx := context.Background()
	if err := seed(ctx, svc, 20); err != nil {
		slog.Error("seed demo board", "error", err)
		os.Exit(1)
	}

	// keep the board moving so /ws subscribers see traffic
	go func() {
		for range time.Tick(2 * time.Second) {
			user := core.UserID(fmt.Sprintf("player%d", rand.IntN(20)))
			props := core.ScoreProps{Score: float64(rand.IntN(10000)), Name: string(user)}
			if err := svc.PutUserScore(ctx, demoGame, user, props); err != nil {
				slog.Warn("demo score update failed", "error", err)
			}
		}
	}()

	handler := httpapi.NewMux(svc, hub, httpapi.Options{AllowCORSOrigin: "*", Logger: logger})
	slog.Info("starting demo server on :8080", "game_id", demoGame)

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, svc *engine.LeaderboardService, n int) error {
	for i := range n {
		user := core.UserID(fmt.Sprintf("player%d", i))
		props := core.ScoreProps{Score: float64(rand.IntN(10000)), Name: string(user)}
		if err := svc.PutUserScore(ctx, demoGame, user, props); err != nil {
			return err
		}
	}
	return nil
}
