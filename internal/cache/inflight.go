package cache

import (
	"context"
	"sync"

	"github.com/rendercache/rendercache/pkg/types"
)

// InFlightFetch is the shared pending-result handle for one origin fetch.
// Concurrent cache misses for the same key all wait on one handle, so N
// requests for an uncached key produce exactly one origin fetch.
//
// The owning fetcher calls Complete exactly once when the fetch settles;
// every waiter then observes the same result. A failed fetch settles the
// same way: all waiters receive the owner's error, and retry policy
// belongs to the layer above the cache.
type InFlightFetch struct {
	key  string
	done chan struct{}
	once sync.Once

	entry *types.CacheEntry
	err   error
}

// NewInFlightFetch creates a pending fetch handle for key.
func NewInFlightFetch(key string) *InFlightFetch {
	return &InFlightFetch{
		key:  key,
		done: make(chan struct{}),
	}
}

// Key returns the storage key this fetch is for.
func (f *InFlightFetch) Key() string {
	return f.key
}

// Complete settles the fetch with a result or an error and releases every
// waiter. Calls after the first are no-ops.
func (f *InFlightFetch) Complete(entry *types.CacheEntry, err error) {
	f.once.Do(func() {
		f.entry = entry
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the fetch settles or the context is done.
func (f *InFlightFetch) Wait(ctx context.Context) (*types.CacheEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.entry, f.err
	}
}
