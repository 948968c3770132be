package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borisprogrm/leaderboard-server/adapters/memory"
	"github.com/borisprogrm/leaderboard-server/cache/simple"
	"github.com/borisprogrm/leaderboard-server/core"
	"github.com/borisprogrm/leaderboard-server/engine"
)

type failingStore struct{ engine.ScoreStore }

func (failingStore) Get(context.Context, core.GameID, core.UserID) (*core.ScoreRecord, error) {
	return nil, core.StoreError("get", errors.New("down"))
}

func TestInstrumentStore(t *testing.T) {
	m := NewManager()
	store := m.InstrumentStore(memory.New(memory.WithDebug(true)), "memory")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "game1", "u1", core.ScoreProps{Score: 1}))
	_, err := store.Top(ctx, "game1", 10)
	require.NoError(t, err)
	_, err = store.Get(ctx, "game1", "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, testutil.CollectAndCount(m.storeLatency))

	broken := m.InstrumentStore(failingStore{store}, "broken")
	_, err = broken.Get(ctx, "game1", "u1")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Equal(t, 4, testutil.CollectAndCount(m.storeLatency))
	require.NoError(t, store.Close())
}

func TestCacheObserver(t *testing.T) {
	m := NewManager()
	store := memory.New(memory.WithDebug(true))
	c := simple.New(store, time.Minute, simple.WithObserver(m))
	defer c.Close()
	ctx := context.Background()

	_, err := c.Top(ctx, "game1", 10)
	require.NoError(t, err)
	_, err = c.Top(ctx, "game1", 10)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheRequests.WithLabelValues(string(simple.OutcomeMiss))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheRequests.WithLabelValues(string(simple.OutcomeHit))))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewManager(WithNamespace("lbtest"), WithRuntimeCollectors())
	m.ObserveHTTP("/status", http.MethodGet, http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `lbtest_http_requests_total{method="GET",route="/status",status_code="200"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
