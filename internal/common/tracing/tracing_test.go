package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/common/config"
)

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "collector:4318", endpointHost("http://collector:4318"))
	assert.Equal(t, "collector:4318", endpointHost("https://collector:4318"))
	assert.Equal(t, "collector:4318", endpointHost("collector:4318"))
}

func TestDisabledTracingIsNoop(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, config.TracingConfig{Enabled: false, Endpoint: "localhost:4318"}))

	_, span := Tracer("test").Start(ctx, "op")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, Shutdown(ctx))
}
