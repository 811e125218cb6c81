package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendercache/rendercache/pkg/types"
)

func TestNewCollectorDefaults(t *testing.T) {
	c, err := NewCollector(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/metrics", c.config.Path)
	assert.NotNil(t, c.Handler())
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: false}, nil)
	require.NoError(t, err)

	// None of these may panic on a disabled collector.
	c.RecordRequest(OutcomeHit)
	c.RecordOriginFetch(time.Millisecond)
	c.RecordEviction("edge", 3)
	c.UpdateEdgeStats(types.CacheStats{})
	c.UpdateSessionState(types.RuntimeState{})
	assert.Nil(t, c.Handler())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestCollectorExposesMetrics(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: true, Port: 0, Path: "/metrics"}, nil)
	require.NoError(t, err)

	c.RecordRequest(OutcomeHit)
	c.RecordRequest(OutcomeHit)
	c.RecordRequest(OutcomeMiss)
	c.RecordOriginFetch(25 * time.Millisecond)
	c.RecordEviction("edge", 2)
	c.UpdateEdgeStats(types.CacheStats{SizeBytes: 4096, EntryCount: 7, HitRate: 0.5})
	c.UpdateSessionState(types.RuntimeState{TotalSizeBytes: 1234, SessionCount: 2, ArtifactCount: 5})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		`rendercache_requests_total{outcome="hit"} 2`,
		`rendercache_requests_total{outcome="miss"} 1`,
		`rendercache_origin_fetches_total 1`,
		`rendercache_evictions_total{tier="edge"} 2`,
		`rendercache_edge_size_bytes 4096`,
		`rendercache_edge_entries 7`,
		`rendercache_session_total_bytes 1234`,
		`rendercache_sessions 2`,
		`rendercache_session_artifacts 5`,
	} {
		assert.True(t, strings.Contains(text, want), "metrics output missing %q", want)
	}
}

func TestRecordEvictionSkipsZero(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: true}, nil)
	require.NoError(t, err)

	c.RecordEviction("edge", 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `rendercache_evictions_total{tier="edge"}`)
}
