package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Store is a concurrent in-memory score store.
// Top sorts the whole board on every call, so it is meant for tests and small boards only.
type Store struct {
	mu     sync.RWMutex
	boards map[core.GameID]map[core.UserID]core.ScoreProps
	logger *slog.Logger
	closed bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	debug  bool
	logger *slog.Logger
}

// WithDebug marks the store as intentionally used outside production,
// which silences the startup warning.
func WithDebug(debug bool) Option { return func(o *options) { o.debug = debug } }

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(opts ...Option) *Store {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.debug {
		o.logger.Warn("in-memory score store should only be used for testing; data is lost on restart and Top sorts the full board")
	}
	o.logger.Debug("score store initialized", "backend", "memory")
	return &Store{
		boards: map[core.GameID]map[core.UserID]core.ScoreProps{},
		logger: o.logger,
	}
}

func (s *Store) Put(_ context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}
	board, ok := s.boards[game]
	if !ok {
		board = map[core.UserID]core.ScoreProps{}
		s.boards[game] = board
	}
	board[user] = props
	return nil
}

func (s *Store) Delete(_ context.Context, game core.GameID, user core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}
	if board, ok := s.boards[game]; ok {
		delete(board, user)
		if len(board) == 0 {
			delete(s.boards, game)
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrClosed
	}
	props, ok := s.boards[game][user]
	if !ok {
		return nil, nil
	}
	rec := core.NewRecord(user, props)
	return &rec, nil
}

func (s *Store) Top(_ context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, core.ErrClosed
	}
	board := s.boards[game]
	out := make([]core.ScoreRecord, 0, len(board))
	for user, props := range board {
		out = append(out, core.NewRecord(user, props))
	}
	s.mu.RUnlock()

	core.SortByScore(out)
	return core.TruncateTop(out, nTop), nil
}

// Close drops all boards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards = nil
	s.closed = true
	s.logger.Debug("score store shutdown", "backend", "memory")
	return nil
}

var _ interface {
	Put(context.Context, core.GameID, core.UserID, core.ScoreProps) error
	Delete(context.Context, core.GameID, core.UserID) error
	Get(context.Context, core.GameID, core.UserID) (*core.ScoreRecord, error)
	Top(context.Context, core.GameID, int) ([]core.ScoreRecord, error)
	Close() error
} = (*Store)(nil)
