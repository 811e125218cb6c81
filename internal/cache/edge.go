package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/rendercache/rendercache/pkg/types"
)

// EdgeCacheConfig represents edge cache configuration.
type EdgeCacheConfig struct {
	MaxSizeBytes       int64         `yaml:"max_size_bytes"`
	TTL                time.Duration `yaml:"ttl"`
	SizeThresholdBytes int64         `yaml:"size_threshold_bytes"`
}

type edgeItem struct {
	entry   types.CacheEntry
	element *list.Element
}

// EdgeCache is an in-memory cache fronting the origin store, with lazy TTL
// expiry, LRU eviction during admission, a size-threshold bypass, and an
// in-flight fetch registry for request coalescing.
//
// The cache itself has no error surface: Get and Set never fail, they only
// miss or reject.
type EdgeCache struct {
	mu     sync.Mutex
	config *EdgeCacheConfig
	logger *slog.Logger

	items     map[string]*edgeItem
	evictList *list.List // front = most recently used; values are keys
	inflight  map[string]*InFlightFetch

	currentSize int64
	hits        uint64
	misses      uint64
	evictions   uint64
}

// NewEdgeCache creates a new edge cache.
func NewEdgeCache(config *EdgeCacheConfig, logger *slog.Logger) *EdgeCache {
	if config == nil {
		config = &EdgeCacheConfig{
			MaxSizeBytes:       50 * 1024 * 1024, // 50MB
			TTL:                5 * time.Minute,
			SizeThresholdBytes: 5 * 1024 * 1024, // 5MB
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EdgeCache{
		config:    config,
		logger:    logger.With("component", "edge-cache"),
		items:     make(map[string]*edgeItem),
		evictList: list.New(),
		inflight:  make(map[string]*InFlightFetch),
	}
}

// Get returns the entry for key, refreshing its recency. An entry past its
// TTL is removed and reported as a miss, not a hit: expiry is checked
// lazily on read, there is no background sweep.
func (c *EdgeCache) Get(key string) (*types.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if c.isExpired(&item.entry) {
		c.removeItemLocked(key)
		c.misses++
		return nil, false
	}

	c.evictList.MoveToFront(item.element)
	c.hits++

	entry := item.entry
	return &entry, true
}

// ShouldCache reports whether content of the given size is admissible.
// Oversized responses bypass the cache entirely.
func (c *EdgeCache) ShouldCache(sizeBytes int64) bool {
	return sizeBytes <= c.config.SizeThresholdBytes
}

// Set admits the entry, evicting least-recently-used entries until it
// fits. It returns false without any state change when the entry fails the
// size threshold or cannot fit at all; callers treat a false return as a
// bypass, not an error.
func (c *EdgeCache) Set(key string, entry types.CacheEntry) bool {
	if !c.ShouldCache(entry.SizeBytes) {
		return false
	}
	if entry.SizeBytes > c.config.MaxSizeBytes {
		// Evicting everything would still not make room.
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		c.currentSize -= existing.entry.SizeBytes
		existing.entry = entry
		c.currentSize += entry.SizeBytes
		c.evictList.MoveToFront(existing.element)
		// A growing replacement can push the cache over its bound just
		// like a fresh admission; the replaced entry sits at the front,
		// so the loop stops before evicting it.
		for c.currentSize > c.config.MaxSizeBytes && c.evictList.Len() > 1 {
			c.evictOldestLocked()
		}
		return true
	}

	for c.currentSize+entry.SizeBytes > c.config.MaxSizeBytes && c.evictList.Len() > 0 {
		c.evictOldestLocked()
	}

	element := c.evictList.PushFront(key)
	c.items[key] = &edgeItem{entry: entry, element: element}
	c.currentSize += entry.SizeBytes
	return true
}

// GetInFlight returns the pending fetch registered for key, if any.
func (c *EdgeCache) GetInFlight(key string) (*InFlightFetch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.inflight[key]
	return f, ok
}

// SetInFlight atomically registers f for key. If a fetch is already in
// flight, the existing handle is returned with owner=false and the caller
// must wait on it instead of fetching. Check-and-insert is a single
// critical section so two goroutines can never both become the owner.
func (c *EdgeCache) SetInFlight(key string, f *InFlightFetch) (handle *InFlightFetch, owner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inflight[key]; ok {
		return existing, false
	}
	c.inflight[key] = f
	return f, true
}

// RemoveInFlight removes the pending-fetch registration for key. The fetch
// owner calls this once the fetch settles, success or failure, so a failed
// fetch can never leave a permanently stuck in-flight marker.
func (c *EdgeCache) RemoveInFlight(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// Stats returns a snapshot of the cache counters.
func (c *EdgeCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := types.CacheStats{
		Hits:         c.hits,
		Misses:       c.misses,
		Evictions:    c.evictions,
		SizeBytes:    c.currentSize,
		MaxSizeBytes: c.config.MaxSizeBytes,
		EntryCount:   len(c.items),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *EdgeCache) isExpired(entry *types.CacheEntry) bool {
	if c.config.TTL <= 0 {
		return false
	}
	return time.Since(entry.CachedAt) > c.config.TTL
}

// removeItemLocked drops an entry without counting it as an eviction; TTL
// expiry is not eviction pressure.
func (c *EdgeCache) removeItemLocked(key string) {
	item, ok := c.items[key]
	if !ok {
		return
	}
	c.evictList.Remove(item.element)
	delete(c.items, key)
	c.currentSize -= item.entry.SizeBytes
}

func (c *EdgeCache) evictOldestLocked() {
	element := c.evictList.Back()
	if element == nil {
		return
	}
	key := element.Value.(string)
	c.removeItemLocked(key)
	c.evictions++
	c.logger.Debug("evicted entry", "key", key)
}
