package clientdata

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupCacheDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../database/schemas/client_data_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

type overviewPayload struct {
	Symbol string  `msgpack:"symbol"`
	Name   string  `msgpack:"name"`
	PE     float64 `msgpack:"pe"`
}

func TestRepositoryStoreAndGetFresh(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	in := overviewPayload{Symbol: "AAPL", Name: "Apple Inc", PE: 34.2}
	require.NoError(t, repo.Store("overview:AAPL", "alphavantage", in, TTLCompanyOverview))

	var out overviewPayload
	require.NoError(t, repo.GetFresh("overview:AAPL", &out))
	assert.Equal(t, in, out)
}

func TestRepositoryCacheMiss(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	var out overviewPayload
	err := repo.GetFresh("overview:MISSING", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, repo.Get("overview:MISSING", &out), ErrCacheMiss)
}

func TestRepositoryExpiredServedOnlyAsStale(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	in := overviewPayload{Symbol: "MSFT", PE: 30}
	require.NoError(t, repo.Store("overview:MSFT", "alphavantage", in, -time.Minute))

	var out overviewPayload
	assert.ErrorIs(t, repo.GetFresh("overview:MSFT", &out), ErrCacheMiss)

	require.NoError(t, repo.Get("overview:MSFT", &out))
	assert.Equal(t, "MSFT", out.Symbol)
}

func TestRepositoryStoreReplaces(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	require.NoError(t, repo.Store("k", "alphavantage", overviewPayload{PE: 1}, time.Hour))
	require.NoError(t, repo.Store("k", "alphavantage", overviewPayload{PE: 2}, time.Hour))

	var out overviewPayload
	require.NoError(t, repo.GetFresh("k", &out))
	assert.Equal(t, 2.0, out.PE)
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	require.NoError(t, repo.Store("k", "alphavantage", overviewPayload{}, time.Hour))
	require.NoError(t, repo.Delete("k"))

	var out overviewPayload
	assert.ErrorIs(t, repo.Get("k", &out), ErrCacheMiss)
}

func TestRepositoryDeleteExpired(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	require.NoError(t, repo.Store("fresh", "alphavantage", overviewPayload{}, time.Hour))
	require.NoError(t, repo.Store("stale1", "alphavantage", overviewPayload{}, -time.Minute))
	require.NoError(t, repo.Store("stale2", "esg", overviewPayload{}, -time.Minute))

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var out overviewPayload
	assert.NoError(t, repo.GetFresh("fresh", &out))
}

func TestRepositoryCountBySource(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))

	require.NoError(t, repo.Store("a", "alphavantage", overviewPayload{}, time.Hour))
	require.NoError(t, repo.Store("b", "alphavantage", overviewPayload{}, time.Hour))
	require.NoError(t, repo.Store("c", "esg", overviewPayload{}, time.Hour))

	counts, err := repo.CountBySource()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["alphavantage"])
	assert.Equal(t, int64(1), counts["esg"])
}

func TestCleanupJob(t *testing.T) {
	repo := NewRepository(setupCacheDB(t))
	job := NewCleanupJob(repo, zerolog.Nop())

	assert.Equal(t, "client_data_cleanup", job.Name())

	require.NoError(t, repo.Store("stale", "alphavantage", overviewPayload{}, -time.Minute))
	require.NoError(t, repo.Store("fresh", "alphavantage", overviewPayload{}, time.Hour))

	require.NoError(t, job.Run())

	var out overviewPayload
	assert.ErrorIs(t, repo.Get("stale", &out), ErrCacheMiss)
	assert.NoError(t, repo.GetFresh("fresh", &out))
}
