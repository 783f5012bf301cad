package audit

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw markup for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// ResultCache persists analysis results keyed by URL.
type ResultCache interface {
	Get(url string) (AnalysisResult, bool)
	Set(url string, result AnalysisResult) error
	Has(url string) bool
	Clear() error
	Stats() CacheStats
	CleanupExpired() (int, error)
}

// Publisher pushes audit-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests for content-addressed snapshot paths.
type Hasher interface {
	Hash(data []byte) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
