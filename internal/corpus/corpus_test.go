package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/hash/sha256"
	"github.com/JakeFAU/topic-corpus/internal/storage"
	"github.com/JakeFAU/topic-corpus/internal/storage/local"
	"github.com/JakeFAU/topic-corpus/internal/storage/memory"
)

func sampleDocs() []crawler.Document {
	return []crawler.Document{
		{Title: "Photosynthesis", RevisionID: "1180", Summary: "plants convert light energy", URL: "https://en.wikipedia.org/wiki/Photosynthesis", Topic: "Science"},
		{Title: "Photosynthesis", RevisionID: "1180", Summary: "plants convert light energy", URL: "https://en.wikipedia.org/wiki/Photosynthesis", Topic: "Environment"},
		{Title: "Football", RevisionID: "7", Summary: "team sport\nplayed with a ball", URL: "https://en.wikipedia.org/wiki/Football", Topic: "Sports"},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore(memory.NewBlobStore(), sha256.New(), "corpus")
	require.Equal(t, "corpus/corpus.json", store.Path())

	artifact, err := store.Save(ctx, sampleDocs())
	require.NoError(t, err)
	require.Equal(t, "memory://corpus/corpus.json", artifact.URI)
	require.Equal(t, 3, artifact.Documents)
	want, err := Checksum(sampleDocs())
	require.NoError(t, err)
	require.Equal(t, want, artifact.SHA256)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleDocs(), loaded)
}

func TestEncodeFieldNames(t *testing.T) {
	t.Parallel()

	data, err := Encode(sampleDocs()[:1])
	require.NoError(t, err)
	require.JSONEq(t, `[{
		"title": "Photosynthesis",
		"revision_id": "1180",
		"summary": "plants convert light energy",
		"url": "https://en.wikipedia.org/wiki/Photosynthesis",
		"topic": "Science"
	}]`, string(data))

	empty, err := Encode(nil)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(empty))
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Decode(nil)
	require.Error(t, err)
	_, err = Decode([]byte(`{"title":"x"}`))
	require.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore(memory.NewBlobStore(), nil, "")
	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestWatchReloadsOnSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	store := NewBlobStore(blobs, nil, "")
	_, err = store.Save(context.Background(), sampleDocs()[:1])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, filepath.Join(dir, FileName), 20*time.Millisecond, func(ctx context.Context) error {
			docs, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 3 {
				reloads.Add(1)
			}
			return nil
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))
	_, err = store.Save(context.Background(), sampleDocs())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
