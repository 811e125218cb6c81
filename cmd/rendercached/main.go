// rendercached is the artifact cache daemon. It serves rendered diagram
// artifacts from a two-tier cache: an in-memory edge tier fronting the
// origin store, and a disk-backed session tier for render-session scoped
// artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/rendercache/rendercache/internal/cache"
	"github.com/rendercache/rendercache/internal/config"
	"github.com/rendercache/rendercache/internal/handler"
	"github.com/rendercache/rendercache/internal/metrics"
	"github.com/rendercache/rendercache/internal/storage"
	"github.com/rendercache/rendercache/internal/storage/local"
	"github.com/rendercache/rendercache/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rendercached: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	origin, err := newOrigin(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize origin backend: %w", err)
	}

	edge, err := newEdgeCache(cfg.Edge, logger)
	if err != nil {
		return err
	}

	sessions, err := newSessionCache(cfg.Session, logger)
	if err != nil {
		return err
	}
	if sessions != nil {
		defer sessions.Shutdown()
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := collector.Stop(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", "error", err)
		}
	}()

	if cfg.Metrics.Enabled && cfg.Metrics.UpdateInterval > 0 {
		go refreshGauges(ctx, cfg.Metrics.UpdateInterval, collector, edge, sessions)
	}

	serverConfig := handler.DefaultServerConfig()
	serverConfig.Address = cfg.ListenAddr
	server := handler.NewServer(serverConfig, edge, sessions, origin, collector, logger)
	server.StartBackground()

	logger.Info("rendercached started",
		"listen_addr", cfg.ListenAddr,
		"storage_backend", cfg.Storage.Backend,
		"session_tier", cfg.Session.Enabled)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newOrigin(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Origin, error) {
	switch cfg.Backend {
	case "local":
		if err := os.MkdirAll(cfg.Local.Directory, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return local.New(cfg.Local.Directory), nil
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			Prefix:       cfg.S3.Prefix,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func newEdgeCache(cfg config.EdgeConfig, logger *slog.Logger) (*cache.EdgeCache, error) {
	maxSize, err := config.ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("edge.max_size: %w", err)
	}
	threshold, err := config.ParseSize(cfg.SizeThreshold)
	if err != nil {
		return nil, fmt.Errorf("edge.size_threshold: %w", err)
	}

	return cache.NewEdgeCache(&cache.EdgeCacheConfig{
		MaxSizeBytes:       maxSize,
		TTL:                cfg.TTL,
		SizeThresholdBytes: threshold,
	}, logger), nil
}

func newSessionCache(cfg config.SessionConfig, logger *slog.Logger) (*cache.SessionCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	quota, err := config.ParseSize(cfg.Quota)
	if err != nil {
		return nil, fmt.Errorf("session.quota: %w", err)
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	sessions, err := cache.NewSessionCache(&cache.SessionCacheConfig{
		Enabled:         true,
		QuotaBytes:      quota,
		SessionTimeout:  cfg.SessionTimeout,
		CleanupInterval: cfg.CleanupInterval,
	}, osfs.New(cfg.Directory), logger)
	if err != nil {
		// The cache stays constructed but unhealthy; run degraded rather
		// than refuse to start, the edge tier still works.
		logger.Error("session cache initialization failed, running degraded", "error", err)
	}
	return sessions, nil
}

// refreshGauges periodically snapshots both tiers into the collector's
// gauges and feeds eviction count deltas into the eviction counter.
func refreshGauges(ctx context.Context, interval time.Duration, collector *metrics.Collector, edge *cache.EdgeCache, sessions *cache.SessionCache) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastEvictions uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := edge.Stats()
			collector.UpdateEdgeStats(stats)
			if delta := stats.Evictions - lastEvictions; delta > 0 {
				collector.RecordEviction("edge", delta)
				lastEvictions = stats.Evictions
			}
			if sessions != nil {
				collector.UpdateSessionState(sessions.RuntimeState())
			}
		}
	}
}
