/*
Package cache implements the two-tier artifact caching subsystem.

Both tiers are ephemeral: nothing survives a restart, and the session tier
wipes its directory on startup so stale content from a crashed prior run is
never served.

# Cache Architecture

	┌─────────────────────────────────────────────┐
	│             Orchestrators                   │
	│    (tool handlers, HTTP artifact handler)   │
	└─────────────────────────────────────────────┘
	          │                         │
	┌─────────────────────┐   ┌─────────────────────┐
	│    SessionCache     │   │      EdgeCache      │
	│  (disk, per-session │   │  (memory, fronting  │
	│   artifacts, quota  │   │   the origin store, │
	│   LRU eviction,     │   │   TTL + LRU +       │
	│   timeout cleanup)  │   │   coalescing)       │
	└─────────────────────┘   └─────────────────────┘
	          │                         │
	┌─────────────────────┐   ┌─────────────────────┐
	│ Filesystem          │   │ Origin store        │
	│ (billy.Filesystem)  │   │ (storage.Origin)    │
	└─────────────────────┘   └─────────────────────┘

SessionCache groups rendered artifacts by the session that produced them,
enforces a global byte quota by evicting the least-recently-accessed
artifact across all sessions, and removes whole sessions after a period of
inactivity.

EdgeCache is a read-through cache for origin-served artifacts with lazy TTL
expiry, LRU eviction during admission, a size-threshold bypass for large
objects, and an in-flight fetch registry that collapses concurrent misses
for one key into a single origin fetch.

Neither cache is a global; both are constructed explicitly and injected
into their consumers.
*/
package cache
