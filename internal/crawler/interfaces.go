package crawler

import (
	"context"
	"time"
)

// PageFetcher loads a single article and its outbound links by exact title.
type PageFetcher interface {
	Fetch(ctx context.Context, pageName string) (Page, error)
}

// SeedResolver maps a free-text seed keyword to the best matching page name.
type SeedResolver interface {
	Resolve(ctx context.Context, keyword string) (string, error)
}

// BlobStore writes and reads raw artifacts by path.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces build IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
