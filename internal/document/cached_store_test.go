package document

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/cache"
	"collab-backend/internal/database/dbtest"
	"collab-backend/internal/model"
)

func newCachedStore(t *testing.T) (*CachedStore, *dbtest.Seed, *miniredis.Miniredis) {
	t.Helper()
	db := dbtest.Open(t)
	seed := dbtest.SeedTree(t, db)
	mr := miniredis.RunT(t)
	rc := cache.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rc.Close() })
	return NewCachedStore(NewGormStore(db), rc, time.Minute), seed, mr
}

func TestCachedFetchPopulatesCache(t *testing.T) {
	store, seed, mr := newCachedStore(t)
	ctx := context.Background()

	key := cacheKey(model.KindFile, seed.File.ID)
	assert.False(t, mr.Exists(key))

	doc, err := store.Fetch(ctx, model.KindFile, seed.File.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.File.ID, doc.ID)
	assert.True(t, mr.Exists(key))
	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestCachedUpdateRefreshesCache(t *testing.T) {
	store, seed, _ := newCachedStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, model.KindFile, seed.File.ID)
	require.NoError(t, err)

	data := `{"ops":[{"insert":"cached\n"}]}`
	_, err = store.Update(ctx, model.KindFile, seed.File.ID, Update{Data: &data})
	require.NoError(t, err)

	doc, err := store.Fetch(ctx, model.KindFile, seed.File.ID)
	require.NoError(t, err)
	assert.Equal(t, data, doc.Data)
}

func TestCachedDeleteEvictsChildren(t *testing.T) {
	store, seed, mr := newCachedStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, model.KindFile, seed.File.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey(model.KindFile, seed.File.ID)))

	_, err = store.Delete(ctx, model.KindFolder, seed.Folder.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(model.KindFile, seed.File.ID)))

	_, err = store.Fetch(ctx, model.KindFile, seed.File.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedFetchSurvivesRedisOutage(t *testing.T) {
	store, seed, mr := newCachedStore(t)
	mr.Close()

	doc, err := store.Fetch(context.Background(), model.KindFile, seed.File.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.File.ID, doc.ID)
}
