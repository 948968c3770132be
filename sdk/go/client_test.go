package sdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/api/httpapi"
	"github.com/borisprogrm/leaderboard-server/cache/passthrough"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
	"github.com/borisprogrm/leaderboard-server/realtime"
)

func TestClient_ScoreLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{APIKeys: []string{"k1"}})
	client, err := NewClient(srv.URL, WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.SendScore(ctx, "g1", "alice", core.ScoreProps{Score: 50, Name: "Alice", Params: "p"}))
	require.NoError(t, client.SendScore(ctx, "g1", "bob", core.ScoreProps{Score: 70}))

	got, err := client.GetScore(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, &core.ScoreProps{Score: 50, Name: "Alice", Params: "p"}, got)

	top, err := client.GetTop(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, core.UserID("bob"), top[0].UserID)
	assert.Equal(t, core.UserID("alice"), top[1].UserID)

	require.NoError(t, client.DeleteScore(ctx, "g1", "alice"))
	got, err = client.GetScore(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", status)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClient_ZeroScoreIsPresent(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{})
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.SendScore(ctx, "g1", "zero", core.ScoreProps{Score: 0}))
	got, err := client.GetScore(ctx, "g1", "zero")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.Score)
}

func TestClient_Errors(t *testing.T) {
	srv, _ := newTestServer(t, httpapi.Options{APIKeys: []string{"k1"}})
	ctx := context.Background()

	anon, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = anon.GetTop(ctx, "g1", 5)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)

	client, err := NewClient(srv.URL, WithAuthToken("k1"))
	require.NoError(t, err)
	_, err = client.GetTop(ctx, "g1", 500)
	assert.True(t, IsBadRequest(err))

	assert.ErrorIs(t, client.SendScore(ctx, "", "u", core.ScoreProps{}), ErrEmptyGameID)
	assert.ErrorIs(t, client.DeleteScore(ctx, "g", " "), ErrEmptyUserID)

	_, err = NewClient(" ")
	assert.Error(t, err)
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv, hub := newTestServer(t, httpapi.Options{})
	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "g1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, client.SendScore(ctx, "other", "bob", core.ScoreProps{Score: 1}))
	require.NoError(t, client.SendScore(ctx, "g1", "alice", core.ScoreProps{Score: 9}))

	select {
	case evt := <-events:
		assert.Equal(t, core.EventScoreSubmitted, evt.Type)
		assert.Equal(t, core.GameID("g1"), evt.GameID)
		assert.Equal(t, core.UserID("alice"), evt.UserID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	cancel()
	for range events {
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8415/ws", deriveWSURL("http://localhost:8415"))
	assert.Equal(t, "wss://lb.example/api/ws", deriveWSURL("https://lb.example/api/"))
}

func newTestServer(t *testing.T, opts httpapi.Options) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	hub := realtime.NewHub()
	forward := func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) }
	bus.Subscribe(core.EventScoreSubmitted, forward)
	bus.Subscribe(core.EventScoreDeleted, forward)
	svc := engine.NewLeaderboardService(store, passthrough.New(store), bus)

	srv := httptest.NewServer(httpapi.NewMux(svc, hub, opts))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		_ = svc.Shutdown()
	})
	return srv, hub
}
