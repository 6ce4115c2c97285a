package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/oneagenthq/oneagent"

// Telemetry owns the tracer provider for a process. Disabled telemetry is an
// explicit construction parameter, not an ambient environment mutation: when
// enabled is false every span is a no-op.
type Telemetry struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTelemetry builds the tracing stack for this process.
func NewTelemetry(enabled bool, serviceName string) *Telemetry {
	if !enabled {
		return &Telemetry{provider: noop.NewTracerProvider()}
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	return &Telemetry{provider: tp, shutdown: tp.Shutdown}
}

// Tracer returns the process tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	if t == nil || t.provider == nil {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return t.provider.Tracer(tracerName)
}

// Shutdown flushes any pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// Sink returns a Sink that records one span per event.
func (t *Telemetry) Sink() Sink {
	tracer := t.Tracer()
	return SinkFunc(func(ctx context.Context, event Event) error {
		event.Normalize()
		_, span := tracer.Start(ctx, string(event.Type))
		span.SetAttributes(
			attribute.String("oneagent.run_id", event.RunID),
			attribute.String("oneagent.session_id", event.SessionID),
			attribute.String("oneagent.tool", event.Tool),
		)
		span.End()
		return nil
	})
}
