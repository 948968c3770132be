package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/borisprogrm/leaderboard-server/core"
)

// LeaderboardService composes a score store and a rank cache into the public API.
// Writes and point reads go to the store; ranked reads go through the cache.
type LeaderboardService struct {
	store ScoreStore
	cache RankCache
	bus   *EventBus
}

// NewLeaderboardService wires the service. bus may be nil when no events are needed.
func NewLeaderboardService(store ScoreStore, cache RankCache, bus *EventBus) *LeaderboardService {
	return &LeaderboardService{store: store, cache: cache, bus: bus}
}

// Subscribe convenience method.
func (s *LeaderboardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.Subscribe(typ, handler)
}

func (s *LeaderboardService) PutUserScore(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	if s.store == nil {
		return core.ErrNotInitialized
	}
	if err := s.store.Put(ctx, game, user, props); err != nil {
		return err
	}
	s.publish(ctx, core.NewScoreSubmitted(game, user, props))
	return nil
}

func (s *LeaderboardService) DeleteUserScore(ctx context.Context, game core.GameID, user core.UserID) error {
	if s.store == nil {
		return core.ErrNotInitialized
	}
	if err := s.store.Delete(ctx, game, user); err != nil {
		return err
	}
	s.publish(ctx, core.NewScoreDeleted(game, user))
	return nil
}

// GetUserScore returns nil, nil when the user has no score on the board.
func (s *LeaderboardService) GetUserScore(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	if s.store == nil {
		return nil, core.ErrNotInitialized
	}
	return s.store.Get(ctx, game, user)
}

// GetTop returns up to nTop records ordered by descending score.
// Results may be up to the cache TTL old; writes do not invalidate the cache.
func (s *LeaderboardService) GetTop(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if s.cache == nil {
		return nil, core.ErrNotInitialized
	}
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	return s.cache.Top(ctx, game, nTop)
}

// Shutdown releases the cache and the store. Both are always attempted.
func (s *LeaderboardService) Shutdown() error {
	var errs []error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rank cache: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close score store: %w", err))
		}
	}
	if s.bus != nil {
		s.bus.Close()
	}
	return errors.Join(errs...)
}

func (s *LeaderboardService) publish(ctx context.Context, ev core.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, ev)
	}
}
