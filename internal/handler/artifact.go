package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rendercache/rendercache/internal/cache"
	"github.com/rendercache/rendercache/internal/metrics"
	"github.com/rendercache/rendercache/internal/storage"
	"github.com/rendercache/rendercache/pkg/cacheerr"
	"github.com/rendercache/rendercache/pkg/types"
)

// handleArtifact serves GET /artifacts/{key} from the edge tier. A miss
// triggers a coalesced origin fetch: the first goroutine to register the
// key becomes the owner and fetches, every concurrent request for the same
// key waits on the owner's handle instead of hitting the origin again.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "missing artifact key")
		return
	}

	if entry, ok := s.edge.Get(key); ok {
		s.recordRequest(metrics.OutcomeHit)
		s.writeEntry(w, entry, "HIT")
		return
	}

	handle, owner := s.edge.SetInFlight(key, cache.NewInFlightFetch(key))
	if !owner {
		entry, err := handle.Wait(r.Context())
		if err != nil {
			s.recordRequest(metrics.OutcomeError)
			s.respondFetchError(w, key, err)
			return
		}
		s.recordRequest(metrics.OutcomeCoalesced)
		s.writeEntry(w, entry, "COALESCED")
		return
	}

	defer s.edge.RemoveInFlight(key)

	entry, err := s.fetchFromOrigin(r, key)
	handle.Complete(entry, err)
	if err != nil {
		s.recordRequest(metrics.OutcomeError)
		s.respondFetchError(w, key, err)
		return
	}

	if s.edge.Set(key, *entry) {
		s.recordRequest(metrics.OutcomeMiss)
	} else {
		s.recordRequest(metrics.OutcomeBypass)
	}
	s.writeEntry(w, entry, "MISS")
}

func (s *Server) fetchFromOrigin(r *http.Request, key string) (*types.CacheEntry, error) {
	start := time.Now()
	result, err := s.origin.Fetch(r.Context(), key)
	if s.collector != nil {
		s.collector.RecordOriginFetch(time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	return &types.CacheEntry{
		Key:          key,
		Content:      result.Content,
		ContentType:  result.ContentType,
		SizeBytes:    result.ContentLength,
		CachedAt:     time.Now(),
		ETag:         result.ETag,
		LastModified: result.LastModified,
	}, nil
}

func (s *Server) respondFetchError(w http.ResponseWriter, key string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "artifact not found: "+key)
		return
	}
	s.logger.Error("origin fetch failed", "key", key, "error", err)
	s.respondError(w, http.StatusBadGateway, "origin fetch failed")
}

// handleSessions routes the session-tier endpoints:
//
//	POST   /sessions/{sid}/artifacts        persist a rendered artifact
//	GET    /sessions/{sid}/artifacts/{aid}  read an artifact back
//	POST   /sessions/{sid}/touch            keep the session alive
//	DELETE /sessions/{sid}                  remove the session and its artifacts
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || !s.sessions.Available() {
		s.respondError(w, http.StatusServiceUnavailable, "session cache unavailable")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		s.respondError(w, http.StatusBadRequest, "missing session id")
		return
	}
	sessionID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.cleanupSession(w, sessionID)
	case len(parts) == 2 && parts[1] == "touch" && r.Method == http.MethodPost:
		s.sessions.TouchSession(sessionID)
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && parts[1] == "artifacts" && r.Method == http.MethodPost:
		s.writeSessionArtifact(w, r, sessionID)
	case len(parts) == 3 && parts[1] == "artifacts" && r.Method == http.MethodGet:
		s.readSessionArtifact(w, sessionID, parts[2])
	default:
		s.respondError(w, http.StatusNotFound, "unknown session endpoint")
	}
}

func (s *Server) writeSessionArtifact(w http.ResponseWriter, r *http.Request, sessionID string) {
	contentType := types.ContentType(r.Header.Get("Content-Type"))
	if !contentType.Valid() {
		s.respondError(w, http.StatusUnsupportedMediaType, "unsupported content type: "+string(contentType))
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxArtifactBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(content)) > s.config.MaxArtifactBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "artifact exceeds size limit")
		return
	}

	ref, err := s.sessions.WriteArtifact(sessionID, content, contentType)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, ref)
}

func (s *Server) readSessionArtifact(w http.ResponseWriter, sessionID, artifactID string) {
	content, contentType, err := s.sessions.GetArtifact(artifactID, sessionID)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", string(contentType))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.logger.Error("failed to write artifact body", "artifact_id", artifactID, "error", err)
	}
}

func (s *Server) cleanupSession(w http.ResponseWriter, sessionID string) {
	if err := s.sessions.CleanupSession(sessionID); err != nil {
		s.logger.Error("session cleanup failed", "session_id", sessionID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "session cleanup failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondSessionError maps the session tier's error codes onto HTTP status
// codes. Unclassified errors are treated as internal.
func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch cacheerr.CodeOf(err) {
	case cacheerr.CodeInvalidArtifactID:
		s.respondError(w, http.StatusBadRequest, err.Error())
	case cacheerr.CodeArtifactNotFound:
		s.respondError(w, http.StatusNotFound, err.Error())
	case cacheerr.CodeSessionMismatch:
		s.respondError(w, http.StatusForbidden, err.Error())
	case cacheerr.CodeCacheUnavailable:
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("session operation failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "session operation failed")
	}
}
