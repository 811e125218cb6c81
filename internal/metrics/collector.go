package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendercache/rendercache/pkg/types"
)

// Request outcome labels recorded by the artifact handler.
const (
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeCoalesced = "coalesced"
	OutcomeBypass    = "bypass"
	OutcomeError     = "error"
)

// Config represents metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Collector registers and serves the cache metrics. A disabled collector
// is a no-op so callers never need to nil-check.
type Collector struct {
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	requestCounter      *prometheus.CounterVec
	originFetchCounter  prometheus.Counter
	originFetchDuration prometheus.Histogram
	evictionCounter     *prometheus.CounterVec

	edgeSizeGauge      prometheus.Gauge
	edgeEntriesGauge   prometheus.Gauge
	edgeHitRateGauge   prometheus.Gauge
	sessionBytesGauge  prometheus.Gauge
	sessionCountGauge  prometheus.Gauge
	artifactCountGauge prometheus.Gauge

	server *http.Server
}

// NewCollector creates a metrics collector.
func NewCollector(config *Config, logger *slog.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled: true,
			Port:    8091,
			Path:    "/metrics",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		config: config,
		logger: logger.With("component", "metrics"),
	}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() {
	const namespace = "rendercache"

	c.requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Artifact requests by outcome",
		},
		[]string{"outcome"},
	)
	c.originFetchCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_fetches_total",
			Help:      "Fetches issued to the origin store",
		},
	)
	c.originFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "origin_fetch_duration_seconds",
			Help:      "Duration of origin fetches in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
	)
	c.evictionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Cache evictions by tier",
		},
		[]string{"tier"},
	)

	c.edgeSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "edge_size_bytes",
		Help:      "Current edge cache size in bytes",
	})
	c.edgeEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "edge_entries",
		Help:      "Current edge cache entry count",
	})
	c.edgeHitRateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "edge_hit_rate",
		Help:      "Edge cache hit rate since start",
	})
	c.sessionBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_total_bytes",
		Help:      "Aggregate bytes held by the session cache",
	})
	c.sessionCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Live session count",
	})
	c.artifactCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_artifacts",
		Help:      "Live artifact count across all sessions",
	})
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.requestCounter,
		c.originFetchCounter,
		c.originFetchDuration,
		c.evictionCounter,
		c.edgeSizeGauge,
		c.edgeEntriesGauge,
		c.edgeHitRateGauge,
		c.sessionBytesGauge,
		c.sessionCountGauge,
		c.artifactCountGauge,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequest counts one artifact request with its outcome.
func (c *Collector) RecordRequest(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.requestCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordOriginFetch counts one origin fetch and observes its duration.
func (c *Collector) RecordOriginFetch(duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.originFetchCounter.Inc()
	c.originFetchDuration.Observe(duration.Seconds())
}

// RecordEviction counts tier evictions ("edge" or "session").
func (c *Collector) RecordEviction(tier string, count uint64) {
	if !c.config.Enabled || count == 0 {
		return
	}
	c.evictionCounter.With(prometheus.Labels{"tier": tier}).Add(float64(count))
}

// UpdateEdgeStats refreshes the edge-tier gauges from a stats snapshot.
func (c *Collector) UpdateEdgeStats(stats types.CacheStats) {
	if !c.config.Enabled {
		return
	}
	c.edgeSizeGauge.Set(float64(stats.SizeBytes))
	c.edgeEntriesGauge.Set(float64(stats.EntryCount))
	c.edgeHitRateGauge.Set(stats.HitRate)
}

// UpdateSessionState refreshes the session-tier gauges from a runtime
// state snapshot.
func (c *Collector) UpdateSessionState(state types.RuntimeState) {
	if !c.config.Enabled {
		return
	}
	c.sessionBytesGauge.Set(float64(state.TotalSizeBytes))
	c.sessionCountGauge.Set(float64(state.SessionCount))
	c.artifactCountGauge.Set(float64(state.ArtifactCount))
}

// Handler returns the HTTP handler serving the registry, or nil when
// metrics are disabled.
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", "error", err)
		}
	}()

	c.logger.Info("metrics server started", "port", c.config.Port, "path", c.config.Path)
	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
