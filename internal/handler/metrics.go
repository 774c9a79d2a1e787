package handler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records scan counters and durations. A nil *Metrics is a no-op
// so tests and telemetry-less deployments need no wiring.
type Metrics struct {
	started  metric.Int64Counter
	finished metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("trace/scan")

	started, err := meter.Int64Counter("scan.started",
		metric.WithDescription("Scans started"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("scan.finished",
		metric.WithDescription("Scans finished"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("scan.duration_seconds",
		metric.WithDescription("Wall time per scan"))
	if err != nil {
		return nil, err
	}
	return &Metrics{started: started, finished: finished, duration: duration}, nil
}

func (m *Metrics) ScanStarted(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.started.Add(ctx, 1, metric.WithAttributes(attribute.Int("depth", depth)))
}

func (m *Metrics) ScanFinished(ctx context.Context, depth int, elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("depth", depth), attribute.Bool("ok", ok))
	m.finished.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
