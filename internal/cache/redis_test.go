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

func setupCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewCache(client, "test:")
}

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheRoundTrip(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", entry{Name: "shop", Count: 3}, time.Minute))
	assert.True(t, mr.Exists("test:k1"))

	var got entry
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, entry{Name: "shop", Count: 3}, got)

	ok, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k1"))
	assert.ErrorIs(t, c.Get(ctx, "k1", &got), ErrMiss)
}

func TestCacheExpiry(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", entry{Name: "x"}, time.Second))
	mr.FastForward(2 * time.Second)

	var got entry
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrMiss)
}

func TestCacheGetBackendError(t *testing.T) {
	mr, c := setupCache(t)
	mr.Close()

	var got entry
	err := c.Get(context.Background(), "k", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
