package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans emitted by this module in whatever
// backend eventually consumes them.
const tracerName = "github.com/quantis-labs/tradecore"

// NewNoopTracer returns a tracer that discards every span — the
// default when no exporter is attached, since export transport is out
// of scope (spec.md §1).
func NewNoopTracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

// NewStdoutTracer builds a tracer that writes spans to stdout, useful
// for local debugging of latency checkpoints. It is never wired to an
// external collector. The returned shutdown func should be called on
// process exit.
func NewStdoutTracer() (oteltrace.Tracer, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	provider := trace.NewTracerProvider(trace.WithBatcher(exporter))
	return provider.Tracer(tracerName), provider.Shutdown, nil
}

// RecordLatencyCheckpoint opens and immediately closes a span named
// stage; the span carries no attributes. Grounded on
// orderbook.go's recordLatencyCheckpoint (trace-id + stage +
// timestamp fields), reimplemented as a real otel span instead of a
// structured log line so a stdout exporter can chain checkpoints into
// one trace.
func RecordLatencyCheckpoint(ctx context.Context, tracer oteltrace.Tracer, stage string) {
	_, span := tracer.Start(ctx, stage)
	span.End()
}
