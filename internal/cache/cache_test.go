package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kinstory/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("mining", "p1", "abc")
	assert.Equal(t, a, Key("mining", "p1", "abc"))
	assert.NotEqual(t, a, Key("mining", "p1a", "bc"), "parts are delimited")
	assert.Contains(t, a, "kinstory:mining:v1:")
}

func cacheContract(t *testing.T, c Cache) {
	ctx := context.Background()
	k, a := Key("test", "k"), Key("test", "a")

	_, found := c.Get(ctx, Key("test", "missing"))
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, k, []byte("v"), time.Minute))
	val, found := c.Get(ctx, k)
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete(ctx, k))
	_, found = c.Get(ctx, k)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, a, []byte("1"), time.Minute))
	require.NoError(t, c.Clear(ctx))
	_, found = c.Get(ctx, a)
	assert.False(t, found)
}

func TestMemoryCache(t *testing.T) {
	cacheContract(t, NewMemoryCache(time.Minute, time.Minute))
}

func TestDiskCache(t *testing.T) {
	cacheContract(t, NewDiskCache(t.TempDir(), time.Hour))
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.NoError(t, c.Delete(ctx, "k"), "deleting a missing entry is fine")
}

func TestLayeredCache(t *testing.T) {
	cacheContract(t, NewLayeredCache(NewMemoryCache(time.Minute, time.Minute), NewDiskCache(t.TempDir(), time.Hour)))
}

func TestLayeredCache_Promotes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(mem, disk)

	require.NoError(t, disk.Set(ctx, "k", []byte("from-disk"), 0))

	val, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("from-disk"), val)

	val, found = mem.Get(ctx, "k")
	require.True(t, found, "hit is promoted to memory")
	assert.Equal(t, []byte("from-disk"), val)
}

func TestNew(t *testing.T) {
	c, err := New(model.CacheConfig{Enabled: false, MemoryTTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute, DiskDir: t.TempDir(), DiskTTL: time.Hour}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LayeredCache{}, c)
}

// TestRedisCache needs a disposable redis, e.g. REDIS_TEST_ADDR=localhost:6379
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run redis integration tests")
	}

	c, err := NewRedisCache(addr, time.Minute)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	cacheContract(t, c)
}
