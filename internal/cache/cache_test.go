package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-quill/internal/segment"
)

func testSentence() segment.Sentence {
	return segment.Parse("他_r 说_v ……_w", segment.DefaultSeparator)
}

func TestMapCache(t *testing.T) {
	ctx := context.Background()
	c := NewMapCache()

	_, ok := c.Get(ctx, "missing")
	require.False(t, ok)

	s := testSentence()
	c.Put(ctx, "line", s)
	require.Equal(t, 1, c.Size())

	// Mutating the stored or returned value must not leak into the cache.
	s[0].Word = "changed"
	got, ok := c.Get(ctx, "line")
	require.True(t, ok)
	require.Equal(t, "他_r 说_v ……_w", got.String())

	got[1].Tag = "x"
	again, _ := c.Get(ctx, "line")
	require.Equal(t, "v", again[1].Tag)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedisCache(context.Background(), RedisConfig{
		Addr: mr.Addr(),
		TTL:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, c := setupRedis(t)

	_, ok := c.Get(ctx, "missing")
	require.False(t, ok)

	c.Put(ctx, "line", testSentence())
	require.True(t, mr.Exists("quill:sentence:line"))

	got, ok := c.Get(ctx, "line")
	require.True(t, ok)
	require.Equal(t, "他_r 说_v ……_w", got.String())

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "line")
	require.False(t, ok)
}

func TestRedisCache_BadEntry(t *testing.T) {
	ctx := context.Background()
	mr, c := setupRedis(t)

	require.NoError(t, mr.Set("quill:sentence:bad", "not cbor"))
	_, ok := c.Get(ctx, "bad")
	require.False(t, ok)
}

func TestRedisCache_ConnectFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisCache(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}
