package slogx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"DEBUG":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"warn":     slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"error":    slog.LevelError,
		"":         slog.LevelInfo,
		"verbose":  slog.LevelInfo,
	}

	for in, want := range cases {
		require.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewInstallsDefaultLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := New(Config{
		Service: "authgate",
		Version: "v0.1.0",
		Env:     "dev",
		Level:   "debug",
		Format:  "text",
	})

	require.NotNil(t, logger)
	require.Same(t, logger, slog.Default())
	require.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
