package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_NoEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, shutdown(context.Background()))

	_, span := tp.Tracer(TracerName).Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := NewProvider(sdktrace.WithSpanProcessor(rec), "")
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer(TracerName).Start(context.Background(), "capture")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "capture", ended[0].Name())

	var component string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.component" {
			component = kv.Value.AsString()
		}
	}
	assert.Equal(t, "observer", component)
}
