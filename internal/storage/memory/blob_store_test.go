package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-corpus/internal/storage"
)

func TestBlobStoreCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "corpus/corpus.json", "application/json", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://corpus/corpus.json", uri)

	payload[0] = 'C'
	got, err := store.GetObject(context.Background(), "corpus/corpus.json")
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.GetObject(context.Background(), "corpus/corpus.json")
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
}

func TestBlobStoreMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.GetObject(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
	_, err = store.PutObject(context.Background(), "", "", nil)
	require.Error(t, err)
}
