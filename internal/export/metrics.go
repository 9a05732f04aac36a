package export

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metricsObserver struct {
	polls    metric.Int64Counter
	restarts metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// MetricsObserver records poll, restart and outcome counters on meter.
func MetricsObserver(meter metric.Meter) (Observer, error) {
	polls, err := meter.Int64Counter("vision_report.export.polls",
		metric.WithDescription("Status polls issued"))
	if err != nil {
		return nil, err
	}
	restarts, err := meter.Int64Counter("vision_report.export.restarts",
		metric.WithDescription("Exports resubmitted after being detected as stuck"))
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("vision_report.export.outcomes",
		metric.WithDescription("Finished exports by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("vision_report.export.duration",
		metric.WithDescription("Wall time of an export invocation"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &metricsObserver{polls: polls, restarts: restarts, outcomes: outcomes, duration: duration}, nil
}

func (m *metricsObserver) Observe(ctx context.Context, e Event) {
	name := attribute.String("export", e.Export)
	switch e.Kind {
	case EventPolled:
		m.polls.Add(ctx, 1, metric.WithAttributes(name, attribute.String("state", string(e.Snapshot.State))))
	case EventRestarting:
		m.restarts.Add(ctx, 1, metric.WithAttributes(name))
	case EventFinished:
		attrs := metric.WithAttributes(name, attribute.String("outcome", Outcome(e.Err)))
		m.outcomes.Add(ctx, 1, attrs)
		m.duration.Record(ctx, e.Elapsed.Seconds(), attrs)
	}
}

// Outcome classifies an error returned by Run into a short label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrSubmission):
		return "submission_error"
	case errors.Is(err, ErrPoll):
		return "poll_error"
	case errors.Is(err, ErrRemoteFailure):
		return "remote_failure"
	case errors.Is(err, ErrStuckExhausted):
		return "stuck_exhausted"
	case errors.Is(err, ErrTimedOut):
		return "timed_out"
	case errors.Is(err, ErrDownload):
		return "download_error"
	default:
		return "error"
	}
}
