package corpus

import (
	"context"
	"fmt"
	"path"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

// FileName is the artifact name under the configured prefix.
const FileName = "corpus.json"

// Artifact describes a persisted corpus.
type Artifact struct {
	URI       string `json:"uri"`
	SHA256    string `json:"sha256"`
	Documents int    `json:"documents"`
}

// Store is the durable document store: written once per build, read by the
// indexer.
type Store interface {
	Save(ctx context.Context, docs []crawler.Document) (Artifact, error)
	Load(ctx context.Context) ([]crawler.Document, error)
}

// BlobStore keeps the corpus as a single JSON object in a blob backend.
type BlobStore struct {
	blobs  crawler.BlobStore
	hasher crawler.Hasher
	path   string
}

var _ Store = (*BlobStore)(nil)

// NewBlobStore stores the corpus at <prefix>/corpus.json in blobs.
func NewBlobStore(blobs crawler.BlobStore, hasher crawler.Hasher, prefix string) *BlobStore {
	return &BlobStore{
		blobs:  blobs,
		hasher: hasher,
		path:   ObjectPath(prefix),
	}
}

// ObjectPath returns the artifact path for prefix.
func ObjectPath(prefix string) string {
	if prefix == "" {
		return FileName
	}
	return path.Join(prefix, FileName)
}

// Path returns the object path inside the blob backend.
func (s *BlobStore) Path() string {
	return s.path
}

// Save encodes and writes docs, replacing any previous corpus.
func (s *BlobStore) Save(ctx context.Context, docs []crawler.Document) (Artifact, error) {
	data, err := Encode(docs)
	if err != nil {
		return Artifact{}, err
	}
	digest := ""
	if s.hasher != nil {
		if digest, err = s.hasher.Hash(data); err != nil {
			return Artifact{}, fmt.Errorf("hash corpus: %w", err)
		}
	}
	uri, err := s.blobs.PutObject(ctx, s.path, ContentType, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("write corpus: %w", err)
	}
	return Artifact{URI: uri, SHA256: digest, Documents: len(docs)}, nil
}

// Load reads and decodes the corpus.
func (s *BlobStore) Load(ctx context.Context) ([]crawler.Document, error) {
	data, err := s.blobs.GetObject(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return Decode(data)
}
