package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/cpdevhub/authgate/internal/authgate/cache"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	// Upsert replaces the value in place.
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreExpiredEntriesAreAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreNonPositiveTTLMeansExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, s.Set(ctx, "k", []byte("new"), -time.Second))

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "live", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "dead1", []byte("v"), 5*time.Millisecond))
	require.NoError(t, s.Set(ctx, "dead2", []byte("v"), 5*time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, purged)

	_, err = s.Get(ctx, "live")
	require.NoError(t, err)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
