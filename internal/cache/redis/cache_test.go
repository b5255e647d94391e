package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.failErr != nil {
		return goredis.NewStringResult("", f.failErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *goredis.StatusCmd {
	if f.failErr != nil {
		return goredis.NewStatusResult("", f.failErr)
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	c := newWithClient(fc, "corpus:")

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))
	require.Equal(t, time.Minute, fc.ttls["corpus:k"])

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)
	require.NoError(t, c.Close())
}

func TestCacheErrors(t *testing.T) {
	t.Parallel()

	fc := newFakeClient()
	fc.failErr = errors.New("connection refused")
	c := newWithClient(fc, "")

	_, ok, err := c.Get(context.Background(), "k")
	require.ErrorIs(t, err, fc.failErr)
	require.False(t, ok)
	require.ErrorIs(t, c.Set(context.Background(), "k", "v", 0), fc.failErr)
}

func TestNewRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Addr: "  "})
	require.Error(t, err)
}
