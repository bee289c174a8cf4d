package httpx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	t.Run("extracts token from well-formed header", func(t *testing.T) {
		require.Equal(t, "abc123", BearerToken("Bearer abc123"))
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		require.Equal(t, "tok", BearerToken("bearer tok"))
		require.Equal(t, "tok", BearerToken("BEARER tok"))
	})

	t.Run("tolerates multiple spaces after scheme", func(t *testing.T) {
		require.Equal(t, "tok", BearerToken("Bearer    tok"))
	})

	t.Run("rejects malformed headers", func(t *testing.T) {
		require.Empty(t, BearerToken(""))
		require.Empty(t, BearerToken("Bearer"))
		require.Empty(t, BearerToken("Bearer "))
		require.Empty(t, BearerToken("Basic dXNlcjpwYXNz"))
		require.Empty(t, BearerToken("Bearer two tokens"))
	})
}
