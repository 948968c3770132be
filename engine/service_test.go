package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	mem "github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/cache/simple"
	"github.com/borisprogrm/leaderboard-server/core"
)

type countingStore struct {
	ScoreStore
	tops   atomic.Int32
	closed atomic.Bool
	err    error
}

func (s *countingStore) Top(ctx context.Context, game core.GameID, n int) ([]core.ScoreRecord, error) {
	s.tops.Add(1)
	return s.ScoreStore.Top(ctx, game, n)
}

func (s *countingStore) Close() error {
	s.closed.Store(true)
	return s.err
}

type closeErrCache struct {
	RankCache
	err error
}

func (c closeErrCache) Close() error { return c.err }

func newTestService(ttl time.Duration) (*LeaderboardService, *countingStore) {
	store := &countingStore{ScoreStore: mem.New(mem.WithDebug(true))}
	cache := simple.New(store, ttl)
	return NewLeaderboardService(store, cache, NewEventBus(DispatchSync)), store
}

func TestServiceScenario(t *testing.T) {
	svc, _ := newTestService(0)
	ctx := context.Background()

	top, err := svc.GetTop(ctx, "game1", 10)
	if err != nil || len(top) != 0 {
		t.Fatalf("empty board: got %v, %v", top, err)
	}
	puts := []core.ScoreRecord{
		core.NewRecord("u1", core.ScoreProps{Score: 84, Name: "Jack"}),
		core.NewRecord("u2", core.ScoreProps{Score: 52}),
		core.NewRecord("u3", core.ScoreProps{Score: 31, Name: "Tom"}),
	}
	for _, r := range puts {
		if err := svc.PutUserScore(ctx, "game1", r.UserID, r.ScoreProps); err != nil {
			t.Fatal(err)
		}
	}
	top, err = svc.GetTop(ctx, "game1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].UserID != "u1" || top[1].UserID != "u2" {
		t.Fatalf("unexpected top: %+v", top)
	}

	rec, err := svc.GetUserScore(ctx, "game1", "u3")
	if err != nil || rec == nil || rec.Name != "Tom" {
		t.Fatalf("get u3: %+v, %v", rec, err)
	}
	if err := svc.DeleteUserScore(ctx, "game1", "u3"); err != nil {
		t.Fatal(err)
	}
	rec, err = svc.GetUserScore(ctx, "game1", "u3")
	if err != nil || rec != nil {
		t.Fatalf("deleted record still present: %+v, %v", rec, err)
	}
}

func TestServiceTopGoesThroughCache(t *testing.T) {
	svc, store := newTestService(time.Minute)
	ctx := context.Background()
	if err := svc.PutUserScore(ctx, "game1", "u1", core.ScoreProps{Score: 1}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.GetTop(ctx, "game1", 10); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.tops.Load(); got != 1 {
		t.Fatalf("want 1 store Top call, got %d", got)
	}

	// writes do not invalidate: the cached answer is served until expiry
	if err := svc.PutUserScore(ctx, "game1", "u2", core.ScoreProps{Score: 2}); err != nil {
		t.Fatal(err)
	}
	top, _ := svc.GetTop(ctx, "game1", 10)
	if len(top) != 1 {
		t.Fatalf("expected stale cached top of 1, got %d", len(top))
	}
}

func TestServicePublishesEvents(t *testing.T) {
	svc, _ := newTestService(0)
	ctx := context.Background()
	var submitted, deleted []core.Event
	svc.Subscribe(core.EventScoreSubmitted, func(_ context.Context, e core.Event) { submitted = append(submitted, e) })
	svc.Subscribe(core.EventScoreDeleted, func(_ context.Context, e core.Event) { deleted = append(deleted, e) })

	_ = svc.PutUserScore(ctx, "game1", "u1", core.ScoreProps{Score: 10, Name: "Ann"})
	_ = svc.DeleteUserScore(ctx, "game1", "u1")

	if len(submitted) != 1 || submitted[0].Score != 10 || submitted[0].GameID != "game1" {
		t.Fatalf("submitted events: %+v", submitted)
	}
	if len(deleted) != 1 || deleted[0].UserID != "u1" {
		t.Fatalf("deleted events: %+v", deleted)
	}
}

func TestServiceNotInitialized(t *testing.T) {
	svc := NewLeaderboardService(nil, nil, nil)
	ctx := context.Background()
	if err := svc.PutUserScore(ctx, "g", "u", core.ScoreProps{}); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("put: %v", err)
	}
	if err := svc.DeleteUserScore(ctx, "g", "u"); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetUserScore(ctx, "g", "u"); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.GetTop(ctx, "g", 5); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("top: %v", err)
	}
	if err := svc.Shutdown(); err != nil {
		t.Fatalf("shutdown of empty service: %v", err)
	}
}

func TestServiceShutdownAttemptsBoth(t *testing.T) {
	storeErr := errors.New("store close failed")
	cacheErr := errors.New("cache close failed")
	store := &countingStore{ScoreStore: mem.New(mem.WithDebug(true)), err: storeErr}
	svc := NewLeaderboardService(store, closeErrCache{err: cacheErr}, nil)

	err := svc.Shutdown()
	if !errors.Is(err, storeErr) || !errors.Is(err, cacheErr) {
		t.Fatalf("want both errors joined, got %v", err)
	}
	if !store.closed.Load() {
		t.Fatal("store was not closed after cache close failed")
	}
}

type hangingStore struct {
	*countingStore
	release chan struct{}
}

func (s hangingStore) Top(ctx context.Context, _ core.GameID, _ int) ([]core.ScoreRecord, error) {
	s.tops.Add(1)
	<-s.release
	return []core.ScoreRecord{}, nil
}

func TestServiceShutdownNotBlockedByHungFetch(t *testing.T) {
	store := hangingStore{
		countingStore: &countingStore{ScoreStore: mem.New(mem.WithDebug(true))},
		release:       make(chan struct{}),
	}
	defer close(store.release)
	cache := simple.New(store, time.Minute, simple.WithCloseTimeout(20*time.Millisecond))
	svc := NewLeaderboardService(store, cache, nil)

	go func() { _, _ = svc.GetTop(context.Background(), "game1", 5) }()
	deadline := time.Now().Add(time.Second)
	for store.tops.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Shutdown() }()
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want cache close timeout in shutdown error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked on a hung fetch")
	}
	if !store.closed.Load() {
		t.Fatal("store was not closed")
	}
}
