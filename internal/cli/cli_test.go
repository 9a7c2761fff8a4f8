package cli

import (
	"context"
	"testing"

	"github.com/EbrithilNogare/frameconv/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapDefaults(t *testing.T) {
	cfg := config.Default()
	rt, err := Bootstrap(context.Background(), cfg, "frameconv-test")
	require.NoError(t, err)
	assert.Empty(t, rt.closers, "tracing and metrics are off by default")
	rt.Close()
}

func TestBootstrapBadLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "chatty"
	_, err := Bootstrap(context.Background(), cfg, "frameconv-test")
	assert.Error(t, err)
}

func TestAdaptersFromConfig(t *testing.T) {
	cfg := config.Default()
	_, err := NewFrameDecoder(cfg)
	require.NoError(t, err)
	_, err = NewVideoFrameDecoder(cfg)
	require.NoError(t, err)
	_, err = NewEnumerator(cfg)
	require.NoError(t, err)

	cfg.ValuePolicy = "saturate"
	_, err = NewFrameDecoder(cfg)
	assert.Error(t, err)
	_, err = NewVideoFrameDecoder(cfg)
	assert.Error(t, err)

	cfg.FrameOrder = "mtime"
	_, err = NewEnumerator(cfg)
	assert.Error(t, err)
}
