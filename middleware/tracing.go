package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tank-bohr/baza/job"
)

// tracerName is the instrumentation scope name for run tracing.
const tracerName = "github.com/tank-bohr/baza"

// Tracing returns middleware that wraps the run in an OpenTelemetry
// span using the global TracerProvider. Without a configured provider
// the noop tracer makes this a pass-through.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided
// tracer, for tests or setups with multiple providers.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "baza.job.run",
			trace.WithAttributes(
				attribute.String("baza.job.id", j.ID.String()),
				attribute.String("baza.job.name", j.Name),
				attribute.String("baza.tenant.id", j.TenantID.String()),
				attribute.Int("baza.job.errors", j.Errors),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
