package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), "", "frameconv-test")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))
}

func TestInitTracer(t *testing.T) {
	ctx := context.Background()
	// The exporter connects lazily, so no collector is needed.
	tp, err := InitTracer(ctx, "http://127.0.0.1:4318/v1/traces", "frameconv-test")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, Shutdown(ctx, tp))
}
