/*
Package config provides configuration management for rendercache.

Configuration is assembled from three sources with increasing precedence:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (RENDERCACHE_*)                   │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration Files                 │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (Compiled-in defaults)               │
	└─────────────────────────────────────────────┘

Byte quantities are written as human-readable strings ("100MB", "2GB") and
parsed with ParseSize. Durations use Go duration syntax ("30s", "5m").

Typical usage:

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile(path); err != nil { ... }
	if err := cfg.LoadFromEnv(); err != nil { ... }
	if err := cfg.Validate(); err != nil { ... }
*/
package config
