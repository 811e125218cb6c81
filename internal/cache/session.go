package cache

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/rendercache/rendercache/pkg/cacheerr"
	"github.com/rendercache/rendercache/pkg/types"
)

// SessionCacheConfig represents session cache configuration.
type SessionCacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	QuotaBytes      int64         `yaml:"quota_bytes"`
	SessionTimeout  time.Duration `yaml:"session_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type sessionArtifact struct {
	id          string
	sessionID   string
	contentType types.ContentType
	size        int64
	createdAt   time.Time
	accessedAt  time.Time
}

type session struct {
	id         string
	createdAt  time.Time
	lastActive time.Time
	artifacts  map[string]*sessionArtifact
	sizeBytes  int64
}

// SessionCache is a disk-backed cache grouping artifacts by the session
// that produced them. It enforces a global byte quota via LRU eviction
// across all sessions and removes sessions after a period of inactivity.
//
// The cache wipes its directory on construction: it is a request-scoped
// ephemeral cache, not a durable store, and content from a crashed prior
// run must never be served.
type SessionCache struct {
	mu     sync.Mutex
	fs     billy.Filesystem
	config *SessionCacheConfig
	logger *slog.Logger

	sessions    map[string]*session
	totalSize   int64
	healthy     bool
	lastCleanup time.Time

	stopCh chan struct{}
	closed bool
}

// NewSessionCache creates a session cache rooted at the given filesystem.
// The root is wiped and recreated; a wipe failure leaves the cache
// constructed but unhealthy, and the error is returned so the caller can
// decide whether to run degraded.
func NewSessionCache(config *SessionCacheConfig, fs billy.Filesystem, logger *slog.Logger) (*SessionCache, error) {
	if config == nil {
		config = &SessionCacheConfig{
			Enabled:         true,
			QuotaBytes:      100 * 1024 * 1024, // 100MB
			SessionTimeout:  30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &SessionCache{
		fs:       fs,
		config:   config,
		logger:   logger.With("component", "session-cache"),
		sessions: make(map[string]*session),
		stopCh:   make(chan struct{}),
	}

	if !config.Enabled {
		return c, nil
	}

	if err := c.wipe(); err != nil {
		return c, fmt.Errorf("failed to initialize session cache directory: %w", err)
	}
	c.healthy = true

	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}

	c.logger.Info("session cache initialized",
		"quota_bytes", config.QuotaBytes,
		"session_timeout", config.SessionTimeout)
	return c, nil
}

// wipe removes everything under the cache root and ensures the root
// directory exists.
func (c *SessionCache) wipe() error {
	entries, err := c.fs.ReadDir("/")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, entry := range entries {
		if err := util.RemoveAll(c.fs, entry.Name()); err != nil {
			return err
		}
	}
	return c.fs.MkdirAll("/", 0o750)
}

// Available reports whether the cache is enabled and healthy.
func (c *SessionCache) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Enabled && c.healthy
}

// WriteArtifact persists content under a new artifact id owned by
// sessionID, lazily creating the session, and triggers eviction if the
// write pushes the total over the quota. Storage write failures propagate
// unchanged in meaning.
func (c *SessionCache) WriteArtifact(sessionID string, content []byte, contentType types.ContentType) (*types.ArtifactRef, error) {
	if !contentType.Valid() {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || !c.healthy {
		return nil, cacheerr.New(cacheerr.CodeCacheUnavailable, "session cache is not available")
	}

	now := time.Now()
	sess, ok := c.sessions[sessionID]
	if !ok {
		if err := c.fs.MkdirAll(sessionID, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create session directory %s: %w", sessionID, err)
		}
		sess = &session{
			id:         sessionID,
			createdAt:  now,
			lastActive: now,
			artifacts:  make(map[string]*sessionArtifact),
		}
		c.sessions[sessionID] = sess
	}

	artifactID := uuid.NewString()
	path := c.fs.Join(sessionID, artifactID+contentType.Extension())
	if err := util.WriteFile(c.fs, path, content, 0o640); err != nil {
		return nil, fmt.Errorf("failed to persist artifact %s: %w", artifactID, err)
	}

	size := int64(len(content))
	sess.artifacts[artifactID] = &sessionArtifact{
		id:          artifactID,
		sessionID:   sessionID,
		contentType: contentType,
		size:        size,
		createdAt:   now,
		accessedAt:  now,
	}
	sess.sizeBytes += size
	sess.lastActive = now
	c.totalSize += size

	if c.totalSize > c.config.QuotaBytes {
		c.evictLocked()
	}

	return &types.ArtifactRef{
		ArtifactID:  artifactID,
		SessionID:   sessionID,
		URI:         "cache://" + sessionID + "/" + artifactID + contentType.Extension(),
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   now,
	}, nil
}

// GetArtifact returns the content and content type of artifactID if it is
// owned by requestingSessionID. The id format is validated before any
// lookup, and the ownership check runs before any content read so one
// session can never read another session's bytes. A read that races an
// eviction self-heals: the stale metadata is purged and ARTIFACT_NOT_FOUND
// is returned instead of the IO error.
func (c *SessionCache) GetArtifact(artifactID, requestingSessionID string) ([]byte, types.ContentType, error) {
	if _, err := uuid.Parse(artifactID); err != nil {
		return nil, "", cacheerr.Newf(cacheerr.CodeInvalidArtifactID, "malformed artifact id %q", artifactID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || !c.healthy {
		return nil, "", cacheerr.New(cacheerr.CodeCacheUnavailable, "session cache is not available")
	}

	art := c.findArtifactLocked(artifactID)
	if art == nil {
		return nil, "", cacheerr.Newf(cacheerr.CodeArtifactNotFound, "artifact %s not found", artifactID)
	}
	if art.sessionID != requestingSessionID {
		return nil, "", cacheerr.Newf(cacheerr.CodeSessionMismatch,
			"artifact %s is owned by a different session", artifactID)
	}

	now := time.Now()
	art.accessedAt = now
	if sess, ok := c.sessions[art.sessionID]; ok {
		sess.lastActive = now
	}

	content, err := c.readArtifactLocked(art)
	if err != nil {
		if os.IsNotExist(err) {
			// File removed out from under us (e.g. concurrent eviction).
			c.removeArtifactLocked(art)
			return nil, "", cacheerr.Newf(cacheerr.CodeArtifactNotFound, "artifact %s not found", artifactID)
		}
		return nil, "", fmt.Errorf("failed to read artifact %s: %w", artifactID, err)
	}
	return content, art.contentType, nil
}

// TouchSession updates the session's last-activity timestamp without any
// other side effects, keeping it alive across multiple writes.
func (c *SessionCache) TouchSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess, ok := c.sessions[sessionID]; ok {
		sess.lastActive = time.Now()
	}
}

// CleanupSession deletes the session's storage subtree and removes it from
// the index. No-op if the session does not exist.
func (c *SessionCache) CleanupSession(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupSessionLocked(sessionID)
}

func (c *SessionCache) cleanupSessionLocked(sessionID string) error {
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}

	// Bookkeeping first so eviction always makes forward progress even if
	// the subtree removal fails. The counter moves by the tracked total,
	// not by re-scanning disk.
	c.totalSize -= sess.sizeBytes
	delete(c.sessions, sessionID)

	if err := util.RemoveAll(c.fs, sessionID); err != nil {
		return fmt.Errorf("failed to remove session directory %s: %w", sessionID, err)
	}
	return nil
}

// evictLocked removes least-recently-accessed artifacts across all
// sessions until the total is at or below 90% of the quota. The slack
// below the quota gives hysteresis so a single subsequent write does not
// immediately re-trigger eviction.
func (c *SessionCache) evictLocked() {
	target := c.config.QuotaBytes / 10 * 9

	for c.totalSize > target {
		art := c.oldestArtifactLocked()
		if art == nil {
			return
		}
		c.removeArtifactLocked(art)
		c.logger.Debug("evicted artifact",
			"artifact_id", art.id, "session_id", art.sessionID, "size", art.size)
	}
}

// oldestArtifactLocked scans every session for the least-recently-accessed
// artifact. Ties break on artifact id so repeated scans are deterministic.
func (c *SessionCache) oldestArtifactLocked() *sessionArtifact {
	var oldest *sessionArtifact
	for _, sess := range c.sessions {
		for _, art := range sess.artifacts {
			if oldest == nil ||
				art.accessedAt.Before(oldest.accessedAt) ||
				(art.accessedAt.Equal(oldest.accessedAt) && strings.Compare(art.id, oldest.id) < 0) {
				oldest = art
			}
		}
	}
	return oldest
}

// removeArtifactLocked removes one artifact's file (best effort) and its
// metadata. If this empties the owning session, the session goes too.
func (c *SessionCache) removeArtifactLocked(art *sessionArtifact) {
	// Content type is not tracked by filename alone, so removal probes the
	// fixed candidate set. Deletion failures are ignored; eviction must
	// always make forward progress.
	for _, ext := range types.ArtifactExtensions {
		_ = c.fs.Remove(c.fs.Join(art.sessionID, art.id+ext))
	}

	sess, ok := c.sessions[art.sessionID]
	if !ok {
		return
	}
	if _, ok := sess.artifacts[art.id]; !ok {
		return
	}
	delete(sess.artifacts, art.id)
	sess.sizeBytes -= art.size
	c.totalSize -= art.size

	if len(sess.artifacts) == 0 {
		delete(c.sessions, art.sessionID)
		_ = util.RemoveAll(c.fs, art.sessionID)
	}
}

func (c *SessionCache) findArtifactLocked(artifactID string) *sessionArtifact {
	for _, sess := range c.sessions {
		if art, ok := sess.artifacts[artifactID]; ok {
			return art
		}
	}
	return nil
}

// readArtifactLocked reads an artifact's content, probing each candidate
// extension in order. Returns os.ErrNotExist when no candidate exists.
func (c *SessionCache) readArtifactLocked(art *sessionArtifact) ([]byte, error) {
	for _, ext := range types.ArtifactExtensions {
		content, err := util.ReadFile(c.fs, c.fs.Join(art.sessionID, art.id+ext))
		if err == nil {
			return content, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, os.ErrNotExist
}

// CleanupOrphanSessions removes every session whose last activity is older
// than the configured session timeout. Errors are logged, never
// propagated, so the scheduled task cannot die.
func (c *SessionCache) CleanupOrphanSessions() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.config.SessionTimeout)
	for id, sess := range c.sessions {
		if sess.lastActive.Before(cutoff) {
			if err := c.cleanupSessionLocked(id); err != nil {
				c.logger.Warn("orphan session cleanup failed", "session_id", id, "error", err)
			} else {
				c.logger.Debug("cleaned up orphan session", "session_id", id)
			}
		}
	}
	c.lastCleanup = time.Now()
}

func (c *SessionCache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.CleanupOrphanSessions()
		}
	}
}

// Shutdown cancels the periodic cleanup task, tears down every session
// sequentially, and marks the cache unhealthy. Per-session errors are
// logged and do not stop the teardown.
func (c *SessionCache) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.stopCh)

	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := c.cleanupSessionLocked(id); err != nil {
			c.logger.Warn("session teardown failed during shutdown", "session_id", id, "error", err)
		}
	}
	c.healthy = false
	c.logger.Info("session cache shut down")
}

// RuntimeState recomputes the aggregate view from the live session index.
// It is derived on demand and never stored.
func (c *SessionCache) RuntimeState() types.RuntimeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalBytes int64
	artifactCount := 0
	for _, sess := range c.sessions {
		for _, art := range sess.artifacts {
			totalBytes += art.size
			artifactCount++
		}
	}

	return types.RuntimeState{
		TotalSizeBytes: totalBytes,
		SessionCount:   len(c.sessions),
		ArtifactCount:  artifactCount,
		Healthy:        c.config.Enabled && c.healthy,
		LastCleanup:    c.lastCleanup,
	}
}
