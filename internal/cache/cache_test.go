package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soltixdb/statseries/internal/compression"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("statseries", "data", `{"table":"BIL51"}`)
	b := Key("statseries", "data", `{"table":"BIL51"}`)
	c := Key("statseries", "data", `{"table":"BIL52"}`)
	d := Key("statseries", "da", `ta{"table":"BIL51"}`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d, "part boundaries are significant")
	assert.Contains(t, a, "statseries:")
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("payload")
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got, "stored value is a copy")
}

func entryCount(c *MemoryCache) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	now = now.Add(2 * time.Minute)

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, entryCount(c), "expired entries stay until swept")

	c.sweep()
	assert.Equal(t, 0, entryCount(c))
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("t", string(rune('a'+i)))
			_ = c.Set(ctx, key, []byte{byte(i)})
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, entryCount(c))
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestCompressed(t *testing.T) {
	inner := NewMemoryCache(time.Minute)
	c := Compressed(inner, compression.NewSnappyCompressor())
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	payload := bytes.Repeat([]byte(`{"value":[1,2,3]}`), 100)
	require.NoError(t, c.Set(ctx, "k", payload))

	raw, ok, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, len(raw), len(payload))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	require.NoError(t, inner.Set(ctx, "bad", []byte{42}))
	_, ok, err = c.Get(ctx, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "none"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = New(config.CacheConfig{Type: "memory", TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	_ = c.Close()

	c, err = New(config.CacheConfig{Type: "memory", TTL: time.Minute, Compress: true})
	require.NoError(t, err)
	assert.IsType(t, &compressed{}, c)
	_ = c.Close()

	_, err = New(config.CacheConfig{Type: "memcached"})
	assert.Error(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	_, err := New(config.CacheConfig{Type: "redis", URL: "redis://127.0.0.1:1/0", TTL: time.Minute})
	assert.Error(t, err)
}

func TestSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "payloads.db")
	c, err := NewSQLiteCache(path, time.Minute)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v1")))
	require.NoError(t, c.Set(ctx, "k", []byte("v2")))
	require.NoError(t, c.Set(ctx, "old", []byte("x")))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLiteCache_ReopenPurgesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payloads.db")
	ctx := context.Background()

	c, err := NewSQLiteCache(path, time.Hour)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, c.Set(ctx, "stale", []byte("old")))
	c.now = time.Now
	require.NoError(t, c.Set(ctx, "fresh", []byte("new")))
	require.NoError(t, c.Close())

	c, err = NewSQLiteCache(path, time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	var rows int
	require.NoError(t, c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payloads`).Scan(&rows))
	assert.Equal(t, 1, rows)

	got, ok, err := c.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestSQLiteCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payloads.db")
	ctx := context.Background()

	c, err := New(config.CacheConfig{Type: "sqlite", Path: path, TTL: time.Hour, Compress: true})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", []byte("payload")))
	require.NoError(t, c.Close())

	c, err = New(config.CacheConfig{Type: "sqlite", Path: path, TTL: time.Hour, Compress: true})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}
