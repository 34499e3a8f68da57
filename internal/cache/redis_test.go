package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestJSONRoundTripAndMiss(t *testing.T) {
	rc, mr := newTestClient(t)
	ctx := context.Background()

	var out map[string]string
	assert.ErrorIs(t, rc.GetJSON(ctx, "missing", &out), ErrMiss)

	require.NoError(t, rc.SetJSON(ctx, "k", map[string]string{"title": "hello"}, time.Minute))
	require.NoError(t, rc.GetJSON(ctx, "k", &out))
	assert.Equal(t, "hello", out["title"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.GetJSON(ctx, "k", &out), ErrMiss)
}

func TestDel(t *testing.T) {
	rc, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, rc.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, rc.SetJSON(ctx, "b", 2, 0))
	require.NoError(t, rc.Del(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	assert.NoError(t, rc.Del(ctx))
	assert.NoError(t, rc.Health(ctx))
}
