package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/metrolist/metrobot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	db, err := OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestSettingsUpsertDefaults(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	s, err := repo.UpsertSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "guild-1", s.GuildID)
	// zero means no override; the process-wide timeout applies
	assert.Equal(t, 0, s.IdleTimeoutSec)
	assert.Equal(t, 10, s.QueuePageSize)

	// second upsert must not reset anything
	s.IdleTimeoutSec = 120
	require.NoError(t, repo.UpdateSettings(ctx, s))

	again, err := repo.UpsertSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 120, again.IdleTimeoutSec)
}

func TestGetSettingsMissing(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetSettings(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCacheAccounting(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CacheTouch(ctx, "aaa", 100, true))
	require.NoError(t, repo.CacheTouch(ctx, "bbb", 200, true))

	total, err := repo.CacheTotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)

	oldest, err := repo.CacheOldest(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"aaa", "bbb"}, oldest)

	require.NoError(t, repo.CacheRemove(ctx, "aaa"))
	total, err = repo.CacheTotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), total)
}
