package sqlx_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/borisprogrm/leaderboard-server/adapters/sqlx"
	"github.com/borisprogrm/leaderboard-server/core"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_Put_PostgresUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5)`) + `\s+ON CONFLICT \(game_id, user_id\) DO UPDATE`).
		WithArgs("game1", "u1", float64(84), "Jack", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), "game1", "u1", core.ScoreProps{Score: 84, Name: "Jack"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Put_MySQLUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`(?s)INSERT INTO user_scores .*ON DUPLICATE KEY UPDATE score = VALUES\(score\)`).
		WithArgs("game1", "u2", float64(52), nil, "some_payload_2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), "game1", "u2", core.ScoreProps{Score: 52, Params: "some_payload_2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Get(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT user_id, score, name, params FROM user_scores WHERE game_id = \$1 AND user_id = \$2`).
		WithArgs("game1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score", "name", "params"}).
			AddRow("u1", 1500.0, "John", nil))

	rec, err := store.Get(ctx, "game1", "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.NewRecord("u1", core.ScoreProps{Score: 1500, Name: "John"}), *rec)

	mock.ExpectQuery(`SELECT user_id, score, name, params FROM user_scores`).
		WithArgs("game1", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score", "name", "params"}))

	rec, err = store.Get(ctx, "game1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Top(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`FROM user_scores WHERE game_id = \$1 ORDER BY score DESC LIMIT \$2`).
		WithArgs("game1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score", "name", "params"}).
			AddRow("u1", 84.0, "Jack", "some_payload_1").
			AddRow("u2", 52.0, nil, "some_payload_2"))

	top, err := store.Top(context.Background(), "game1", 2)
	require.NoError(t, err)
	assert.Equal(t, []core.ScoreRecord{
		core.NewRecord("u1", core.ScoreProps{Score: 84, Name: "Jack", Params: "some_payload_1"}),
		core.NewRecord("u2", core.ScoreProps{Score: 52, Params: "some_payload_2"}),
	}, top)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_TopZeroSkipsQuery(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	top, err := store.Top(context.Background(), "game1", 0)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Delete(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM user_scores WHERE game_id = \$1 AND user_id = \$2`).
		WithArgs("game1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "game1", "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ErrorsAreStoreUnavailable(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO user_scores`).WillReturnError(boom)
	err := store.Put(ctx, "game1", "u1", core.ScoreProps{Score: 1})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(`SELECT user_id`).WillReturnError(boom)
	_, err = store.Get(ctx, "game1", "u1")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	mock.ExpectQuery(`SELECT user_id`).WillReturnError(boom)
	top, err := store.Top(ctx, "game1", 5)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Nil(t, top)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MigrateMySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS user_scores .*INDEX idx_user_scores_game_score`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := storage.New(storage.Config{Driver: "oracle", DSN: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
