package types

import "time"

// ContentType identifies the MIME type of a rendered artifact.
type ContentType string

const (
	// ContentTypeSVG is the MIME type for SVG renders.
	ContentTypeSVG ContentType = "image/svg+xml"
	// ContentTypePDF is the MIME type for PDF renders.
	ContentTypePDF ContentType = "application/pdf"
)

// Valid reports whether the content type is one the cache accepts.
func (t ContentType) Valid() bool {
	return t == ContentTypeSVG || t == ContentTypePDF
}

// Extension returns the file extension used on disk for this content type,
// including the leading dot. Unknown types fall back to ".bin".
func (t ContentType) Extension() string {
	switch t {
	case ContentTypeSVG:
		return ".svg"
	case ContentTypePDF:
		return ".pdf"
	default:
		return ".bin"
	}
}

// ArtifactExtensions lists every extension an artifact file may carry on
// disk, in probe order. The session tier iterates over this set when the
// content type is not known from the filename alone.
var ArtifactExtensions = []string{".svg", ".pdf"}

// ContentTypeForExtension maps a file extension (with leading dot) back to
// its content type. The second return is false for unknown extensions.
func ContentTypeForExtension(ext string) (ContentType, bool) {
	switch ext {
	case ".svg":
		return ContentTypeSVG, true
	case ".pdf":
		return ContentTypePDF, true
	default:
		return "", false
	}
}

// ArtifactRef describes an artifact persisted by the session tier.
type ArtifactRef struct {
	ArtifactID  string      `json:"artifact_id"`
	SessionID   string      `json:"session_id"`
	URI         string      `json:"uri"`
	ContentType ContentType `json:"content_type"`
	SizeBytes   int64       `json:"size_bytes"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CacheEntry is a single edge-tier cache entry. ETag and LastModified are
// opaque origin metadata passed through to HTTP responses when present.
type CacheEntry struct {
	Key          string      `json:"key"`
	Content      []byte      `json:"-"`
	ContentType  string      `json:"content_type"`
	SizeBytes    int64       `json:"size_bytes"`
	CachedAt     time.Time   `json:"cached_at"`
	ETag         string      `json:"etag,omitempty"`
	LastModified time.Time   `json:"last_modified,omitempty"`
}

// CacheStats represents edge-tier cache performance statistics.
type CacheStats struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	Evictions    uint64  `json:"evictions"`
	SizeBytes    int64   `json:"size_bytes"`
	MaxSizeBytes int64   `json:"max_size_bytes"`
	EntryCount   int     `json:"entry_count"`
	HitRate      float64 `json:"hit_rate"`
}

// RuntimeState is the session tier's derived aggregate view. It is
// recomputed on demand from the live session index and is never stored.
type RuntimeState struct {
	TotalSizeBytes int64     `json:"total_size_bytes"`
	SessionCount   int       `json:"session_count"`
	ArtifactCount  int       `json:"artifact_count"`
	Healthy        bool      `json:"healthy"`
	LastCleanup    time.Time `json:"last_cleanup"`
}
