package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/naduri/naduri-backend"

// latencyBuckets covers remote AI calls, which take from a few hundred ms to tens of seconds
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60}

// MetricsCollector records collaborator and ledger activity through OpenTelemetry
type MetricsCollector struct {
	requestDuration metric.Float64Histogram
	requests        metric.Int64Counter
	degraded        metric.Int64Counter
	turns           metric.Int64Counter
}

// NewMetricsCollector creates the instruments on mp
func NewMetricsCollector(mp metric.MeterProvider) (*MetricsCollector, error) {
	m := mp.Meter(meterName)
	mc := &MetricsCollector{}
	var err error

	if mc.requestDuration, err = m.Float64Histogram("naduri.collaborator.duration",
		metric.WithDescription("Latency of external AI collaborator calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if mc.requests, err = m.Int64Counter("naduri.collaborator.requests",
		metric.WithDescription("Collaborator calls by operation and status."),
	); err != nil {
		return nil, err
	}
	if mc.degraded, err = m.Int64Counter("naduri.collaborator.degraded",
		metric.WithDescription("Collaborator results replaced by a default value."),
	); err != nil {
		return nil, err
	}
	if mc.turns, err = m.Int64Counter("naduri.turns.appended",
		metric.WithDescription("Turns appended to session ledgers by speaker."),
	); err != nil {
		return nil, err
	}
	return mc, nil
}

// NewNoopMetricsCollector returns a collector that records nothing
func NewNoopMetricsCollector() *MetricsCollector {
	mc, _ := NewMetricsCollector(noop.NewMeterProvider())
	return mc
}

// RecordRequest records one collaborator call
func (mc *MetricsCollector) RecordRequest(ctx context.Context, op string, success bool, latency time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("status", status))
	mc.requests.Add(ctx, 1, attrs)
	mc.requestDuration.Record(ctx, latency.Seconds(), attrs)
}

// RecordDegraded records a substituted default
func (mc *MetricsCollector) RecordDegraded(ctx context.Context, op string) {
	mc.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordTurn records an appended turn
func (mc *MetricsCollector) RecordTurn(ctx context.Context, speaker string) {
	mc.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("speaker", speaker)))
}
