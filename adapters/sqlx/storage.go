// Package sqlx stores boards in a relational table through jmoiron/sqlx.
// PostgreSQL, MySQL and SQLite are supported; the first two are intended for
// production, SQLite for local runs and tests.
package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/borisprogrm/leaderboard-server/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about
	sqlx.BindDriver(string(DriverSQLite), sqlx.QUESTION)
}

// Config holds SQL connection settings.
type Config struct {
	Driver          Driver        `json:"driver" env:"LEADERBOARD_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"LEADERBOARD_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"LEADERBOARD_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"LEADERBOARD_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"LEADERBOARD_SQL_CONN_MAX_LIFETIME"`
	// AutoMigrate creates the table and index on startup when missing.
	AutoMigrate bool `json:"auto_migrate" env:"LEADERBOARD_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns defaults for the given driver with an empty DSN.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Store keeps one row per (game_id, user_id) in user_scores.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
}

// New opens a connection pool for config and optionally migrates the schema.
func New(config Config, opts ...Option) (*Store, error) {
	d, ok := dialects[config.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported sql driver %q", core.ErrInvalidConfig, config.Driver)
	}
	db, err := sqlx.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, core.StoreError("open sql database", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, core.StoreError("connect to sql database", err)
	}

	s := newStore(db, d, opts)
	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing).
// It panics on an unknown driver.
func NewWithDB(db *sqlx.DB, driver Driver, opts ...Option) *Store {
	d, ok := dialects[driver]
	if !ok {
		panic(fmt.Sprintf("sqlx: unsupported driver %q", driver))
	}
	return newStore(db, d, opts)
}

func newStore(db *sqlx.DB, d dialect, opts []Option) *Store {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger.Debug("score store initialized", "backend", "sql", "driver", d.driver)
	return &Store{db: db, dialect: d, logger: o.logger}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return core.StoreError("sql migrate", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	s.logger.Debug("score store shutdown", "backend", "sql")
	return err
}

type scoreRow struct {
	UserID string         `db:"user_id"`
	Score  float64        `db:"score"`
	Name   sql.NullString `db:"name"`
	Params sql.NullString `db:"params"`
}

func (r scoreRow) record() core.ScoreRecord {
	return core.NewRecord(core.UserID(r.UserID), core.ScoreProps{
		Score:  r.Score,
		Name:   r.Name.String,
		Params: r.Params.String,
	})
}

// nullable stores absent metadata as NULL.
func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func (s *Store) Put(ctx context.Context, game core.GameID, user core.UserID, props core.ScoreProps) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsert),
		string(game), string(user), props.Score, nullable(props.Name), nullable(props.Params))
	return core.StoreError("sql put", err)
}

func (s *Store) Delete(ctx context.Context, game core.GameID, user core.UserID) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM user_scores WHERE game_id = ? AND user_id = ?`),
		string(game), string(user))
	return core.StoreError("sql delete", err)
}

func (s *Store) Get(ctx context.Context, game core.GameID, user core.UserID) (*core.ScoreRecord, error) {
	var row scoreRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT user_id, score, name, params FROM user_scores WHERE game_id = ? AND user_id = ?`),
		string(game), string(user))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StoreError("sql get", err)
	}
	rec := row.record()
	return &rec, nil
}

func (s *Store) Top(ctx context.Context, game core.GameID, nTop int) ([]core.ScoreRecord, error) {
	if nTop <= 0 {
		return []core.ScoreRecord{}, nil
	}
	var rows []scoreRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT user_id, score, name, params FROM user_scores WHERE game_id = ? ORDER BY score DESC LIMIT ?`),
		string(game), nTop)
	if err != nil {
		return nil, core.StoreError("sql top", err)
	}
	out := make([]core.ScoreRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}
