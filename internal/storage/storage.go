// Package storage defines the origin collaborator contract consumed by the
// edge cache's callers. An origin is the authoritative backing store an
// artifact is fetched from on a cache miss.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Fetch when the key does not exist in the
// origin. It is distinguishable from transport and IO failures so callers
// can translate it into a not-found response instead of a server error.
var ErrNotFound = errors.New("object not found")

// FetchResult carries the bytes and metadata returned by an origin fetch.
// ETag and LastModified are optional passthrough metadata; zero values mean
// the origin did not supply them.
type FetchResult struct {
	Content       []byte
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time
}

// Origin is the authoritative backing store for rendered artifacts.
//
// Implementations must return an error wrapping ErrNotFound from Fetch when
// the key is absent. Delete is idempotent: deleting an absent key is not an
// error.
type Origin interface {
	Fetch(ctx context.Context, key string) (*FetchResult, error)
	Store(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}
