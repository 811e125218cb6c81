package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	ListenAddr string        `yaml:"listen_addr"`
	Session    SessionConfig `yaml:"session"`
	Edge       EdgeConfig    `yaml:"edge"`
	Storage    StorageConfig `yaml:"storage"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Logging    LoggingConfig `yaml:"logging"`
}

// SessionConfig configures the session-scoped disk cache.
type SessionConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Directory       string        `yaml:"directory"`
	Quota           string        `yaml:"quota"`
	SessionTimeout  time.Duration `yaml:"session_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// EdgeConfig configures the in-memory edge cache.
type EdgeConfig struct {
	MaxSize       string        `yaml:"max_size"`
	TTL           time.Duration `yaml:"ttl"`
	SizeThreshold string        `yaml:"size_threshold"`
}

// StorageConfig selects and configures the origin backend.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Local   LocalConfig `yaml:"local"`
	S3      S3Config    `yaml:"s3"`
}

// LocalConfig configures the filesystem origin backend.
type LocalConfig struct {
	Directory string `yaml:"directory"`
}

// S3Config configures the S3 origin backend.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		ListenAddr: ":8090",
		Session: SessionConfig{
			Enabled:         true,
			Directory:       "/tmp/rendercache-sessions",
			Quota:           "100MB",
			SessionTimeout:  30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Edge: EdgeConfig{
			MaxSize:       "50MB",
			TTL:           5 * time.Minute,
			SizeThreshold: "5MB",
		},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalConfig{
				Directory: "/tmp/rendercache-store",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Port:           8091,
			Path:           "/metrics",
			UpdateInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			JSON:  false,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies RENDERCACHE_* environment variable overrides.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("RENDERCACHE_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}

	// Session tier
	if val := os.Getenv("RENDERCACHE_SESSION_ENABLED"); val != "" {
		c.Session.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("RENDERCACHE_SESSION_DIR"); val != "" {
		c.Session.Directory = val
	}
	if val := os.Getenv("RENDERCACHE_SESSION_QUOTA"); val != "" {
		c.Session.Quota = val
	}
	if val := os.Getenv("RENDERCACHE_SESSION_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Session.SessionTimeout = d
		}
	}
	if val := os.Getenv("RENDERCACHE_CLEANUP_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Session.CleanupInterval = d
		}
	}

	// Edge tier
	if val := os.Getenv("RENDERCACHE_EDGE_MAX_SIZE"); val != "" {
		c.Edge.MaxSize = val
	}
	if val := os.Getenv("RENDERCACHE_EDGE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Edge.TTL = d
		}
	}
	if val := os.Getenv("RENDERCACHE_EDGE_SIZE_THRESHOLD"); val != "" {
		c.Edge.SizeThreshold = val
	}

	// Storage backend
	if val := os.Getenv("RENDERCACHE_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = val
	}
	if val := os.Getenv("RENDERCACHE_STORAGE_DIR"); val != "" {
		c.Storage.Local.Directory = val
	}
	if val := os.Getenv("RENDERCACHE_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("RENDERCACHE_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("RENDERCACHE_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}

	// Metrics
	if val := os.Getenv("RENDERCACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("RENDERCACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	// Logging
	if val := os.Getenv("RENDERCACHE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("RENDERCACHE_LOG_JSON"); val != "" {
		c.Logging.JSON = strings.ToLower(val) == "true"
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}

	if c.Session.Enabled {
		if c.Session.Directory == "" {
			return fmt.Errorf("session.directory must not be empty")
		}
		if _, err := ParseSize(c.Session.Quota); err != nil {
			return fmt.Errorf("session.quota: %w", err)
		}
		if c.Session.SessionTimeout <= 0 {
			return fmt.Errorf("session.session_timeout must be greater than 0")
		}
	}

	if _, err := ParseSize(c.Edge.MaxSize); err != nil {
		return fmt.Errorf("edge.max_size: %w", err)
	}
	if _, err := ParseSize(c.Edge.SizeThreshold); err != nil {
		return fmt.Errorf("edge.size_threshold: %w", err)
	}
	if c.Edge.TTL <= 0 {
		return fmt.Errorf("edge.ttl must be greater than 0")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Local.Directory == "" {
			return fmt.Errorf("storage.local.directory must not be empty")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket must not be empty")
		}
	default:
		return fmt.Errorf("invalid storage.backend: %s (must be local or s3)", c.Storage.Backend)
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Logging.Level) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid logging.level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// sizeUnits maps size suffixes to multipliers. Longer suffixes are matched
// first so "KB" wins over "B".
var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses a human-readable byte quantity such as "512KB", "100MB"
// or a bare number of bytes.
func ParseSize(s string) (int64, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(s))
	if trimmed == "" {
		return 0, fmt.Errorf("empty size")
	}

	for _, unit := range sizeUnits {
		if strings.HasSuffix(trimmed, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(trimmed, unit.suffix))
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			if num < 0 {
				return 0, fmt.Errorf("invalid size %q: must not be negative", s)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	num, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if num < 0 {
		return 0, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	return num, nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
