package we

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

const tracerName = "wee-streams"

func ConsoleExporter() (trace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

// OTLPExporter sends spans to an OTLP/HTTP collector such as the
// opentelemetry-collector or honeycomb.
func OTLPExporter(ctx context.Context, endpoint string, headers map[string]string) (trace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithHeaders(headers),
	}

	return otlptracehttp.New(ctx, opts...)
}

// TracerProvider batches spans to exporter. The caller shuts it down.
func TracerProvider(exporter trace.SpanExporter, options ...trace.TracerProviderOption) *trace.TracerProvider {
	options = append([]trace.TracerProviderOption{trace.WithBatcher(exporter)}, options...)
	return trace.NewTracerProvider(options...)
}
