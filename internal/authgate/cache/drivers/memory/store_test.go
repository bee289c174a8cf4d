package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreNonPositiveTTLMeansExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, s.Set(ctx, "k", []byte("new"), 0))

	// The zero-TTL write must not leave the old value behind either.
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreCopiesValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	v := []byte("mutable")
	require.NoError(t, s.Set(ctx, "k", v, time.Minute))
	v[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("mutable"), got)
}

func TestStoreDeleteAbsentKeyIsNoop(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewStore().Delete(context.Background(), "missing"))
}
