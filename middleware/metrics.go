package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tank-bohr/baza/job"
)

// meterName is the instrumentation scope name for run metrics.
const meterName = "github.com/tank-bohr/baza"

// Metrics returns middleware recording per-run metrics with the global
// OTel MeterProvider. Without a configured provider the noop
// instruments make this a pass-through.
//
// Instruments:
//   - baza.job.duration (Float64Histogram): run time in seconds, with
//     attributes job_name and status ("ok" or "error")
//   - baza.job.runs (Int64Counter): total runs, same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once; on error the OTel API hands back
	// noop instruments, so the middleware degrades instead of failing.
	duration, _ := meter.Float64Histogram(
		"baza.job.duration",
		metric.WithDescription("Duration of a job run in seconds"),
		metric.WithUnit("s"),
	)
	runs, _ := meter.Int64Counter(
		"baza.job.runs",
		metric.WithDescription("Total number of job runs"),
		metric.WithUnit("{run}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_name", j.Name),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		runs.Add(ctx, 1, attrs)

		return err
	}
}
