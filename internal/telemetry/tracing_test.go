package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerProviderStdout(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider(context.Background(), Config{
		ServiceName: "topic-corpus",
		Enabled:     true,
		Exporter:    ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "crawl.topic")
	require.True(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	require.Contains(t, buf.String(), "crawl.topic")
}

func TestInitTracerProviderDisabled(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), Config{ServiceName: "topic-corpus"})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := otel.Tracer("test").Start(context.Background(), "search.query")
	defer span.End()
	require.False(t, span.SpanContext().IsSampled())
}

func TestInitTracerProviderUnknownExporter(t *testing.T) {
	_, err := InitTracerProvider(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unknown trace exporter")
}
