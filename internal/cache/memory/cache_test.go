package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c := New[[]string](time.Minute)
	c.Set("car sticker", []string{"https://a.example"})
	got, ok := c.Get("car sticker")
	require.True(t, ok)
	require.Equal(t, []string{"https://a.example"}, got)

	_, ok = c.Get("missing")
	require.False(t, ok)

	c.Delete("car sticker")
	_, ok = c.Get("car sticker")
	require.False(t, ok)
}

func TestCacheExpiryAndSweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(30 * time.Second)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Set("b", 2)
	require.Equal(t, 1, c.Len())
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()

	c := New[string](0)
	c.Set("k", "v")
	_, ok := c.Get("k")
	require.False(t, ok)
	require.Zero(t, c.Len())

	var nilCache *Cache[string]
	_, ok = nilCache.Get("k")
	require.False(t, ok)
	nilCache.Set("k", "v")
}
