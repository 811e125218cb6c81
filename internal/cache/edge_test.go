package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercache/rendercache/pkg/types"
)

func newTestEdgeCache(maxSize, threshold int64, ttl time.Duration) *EdgeCache {
	return NewEdgeCache(&EdgeCacheConfig{
		MaxSizeBytes:       maxSize,
		TTL:                ttl,
		SizeThresholdBytes: threshold,
	}, nil)
}

func entryOf(key string, size int) types.CacheEntry {
	return types.CacheEntry{
		Key:         key,
		Content:     payload(size),
		ContentType: "image/svg+xml",
		SizeBytes:   int64(size),
		CachedAt:    time.Now(),
	}
}

func TestEdgeCacheDefaults(t *testing.T) {
	c := NewEdgeCache(nil, nil)
	require.NotNil(t, c)
	assert.Equal(t, int64(50*1024*1024), c.config.MaxSizeBytes)
	assert.Equal(t, 5*time.Minute, c.config.TTL)
}

func TestEdgeGetSetHit(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, time.Hour)

	entry := entryOf("a.svg", 100)
	require.True(t, c.Set("a.svg", entry))

	got, ok := c.Get("a.svg")
	require.True(t, ok)
	assert.Equal(t, entry.Content, got.Content)
	assert.Equal(t, "image/svg+xml", got.ContentType)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
	assert.Equal(t, int64(100), stats.SizeBytes)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestEdgeGetMiss(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, time.Hour)

	_, ok := c.Get("absent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, float64(0), stats.HitRate)
}

func TestEdgeTTLExpiry(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, 10*time.Millisecond)

	require.True(t, c.Set("short.svg", entryOf("short.svg", 50)))

	// Fresh entry is a hit.
	_, ok := c.Get("short.svg")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	// Expired entry is a miss and is removed, not counted as a hit.
	_, ok = c.Get("short.svg")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, int64(0), stats.SizeBytes)
}

func TestEdgeShouldCache(t *testing.T) {
	c := newTestEdgeCache(1024, 500, time.Hour)

	assert.True(t, c.ShouldCache(499))
	assert.True(t, c.ShouldCache(500))
	assert.False(t, c.ShouldCache(501))
}

func TestEdgeSetThresholdBypass(t *testing.T) {
	c := newTestEdgeCache(10_000, 500, time.Hour)

	accepted := c.Set("big.pdf", entryOf("big.pdf", 501))
	assert.False(t, accepted)

	stats := c.Stats()
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, int64(0), stats.SizeBytes)
}

func TestEdgeSetLargerThanCache(t *testing.T) {
	c := newTestEdgeCache(100, 1024, time.Hour)

	assert.False(t, c.Set("huge.pdf", entryOf("huge.pdf", 200)))
	assert.Equal(t, 0, c.Stats().EntryCount)
}

func TestEdgeLRUEviction(t *testing.T) {
	c := newTestEdgeCache(250, 250, time.Hour)

	require.True(t, c.Set("first.svg", entryOf("first.svg", 100)))
	require.True(t, c.Set("second.svg", entryOf("second.svg", 100)))

	// Mark the first entry recently used, then overflow: the second entry
	// is now least-recently-used and must be the one evicted.
	_, ok := c.Get("first.svg")
	require.True(t, ok)

	require.True(t, c.Set("third.svg", entryOf("third.svg", 100)))

	_, ok = c.Get("first.svg")
	assert.True(t, ok, "recently used entry must survive")
	_, ok = c.Get("second.svg")
	assert.False(t, ok, "least-recently-used entry must be evicted")
	_, ok = c.Get("third.svg")
	assert.True(t, ok)

	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestEdgeSetReplacesExisting(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, time.Hour)

	require.True(t, c.Set("k.svg", entryOf("k.svg", 100)))
	require.True(t, c.Set("k.svg", entryOf("k.svg", 200)))

	stats := c.Stats()
	assert.Equal(t, 1, stats.EntryCount)
	assert.Equal(t, int64(200), stats.SizeBytes)
}

func TestEdgeGrowingReplacementEvicts(t *testing.T) {
	c := newTestEdgeCache(250, 250, time.Hour)

	require.True(t, c.Set("a.svg", entryOf("a.svg", 100)))
	require.True(t, c.Set("b.svg", entryOf("b.svg", 100)))

	// Replacing a with a larger entry must shed LRU entries, not sit
	// over the bound.
	require.True(t, c.Set("a.svg", entryOf("a.svg", 200)))

	stats := c.Stats()
	assert.LessOrEqual(t, stats.SizeBytes, stats.MaxSizeBytes)
	assert.Equal(t, 1, stats.EntryCount)
	assert.Equal(t, uint64(1), stats.Evictions)

	_, ok := c.Get("a.svg")
	assert.True(t, ok, "the replaced entry survives")
	_, ok = c.Get("b.svg")
	assert.False(t, ok, "the LRU entry is evicted to make room")
}

func TestEdgeHitRate(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, time.Hour)

	require.True(t, c.Set("k.svg", entryOf("k.svg", 10)))
	c.Get("k.svg")
	c.Get("k.svg")
	c.Get("k.svg")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.75, stats.HitRate, 0.0001)
}

func TestInFlightRegistration(t *testing.T) {
	c := newTestEdgeCache(1024, 1024, time.Hour)

	_, ok := c.GetInFlight("k.svg")
	assert.False(t, ok)

	f := NewInFlightFetch("k.svg")
	handle, owner := c.SetInFlight("k.svg", f)
	assert.True(t, owner)
	assert.Same(t, f, handle)

	// A second registration yields the existing handle.
	f2 := NewInFlightFetch("k.svg")
	handle, owner = c.SetInFlight("k.svg", f2)
	assert.False(t, owner)
	assert.Same(t, f, handle)

	got, ok := c.GetInFlight("k.svg")
	require.True(t, ok)
	assert.Same(t, f, got)

	c.RemoveInFlight("k.svg")
	_, ok = c.GetInFlight("k.svg")
	assert.False(t, ok)

	// Only one in-flight fetch may exist per key at any instant.
	handle, owner = c.SetInFlight("k.svg", f2)
	assert.True(t, owner)
	assert.Same(t, f2, handle)
}
