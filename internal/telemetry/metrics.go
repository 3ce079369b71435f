package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	IndexWrites        metric.Int64Counter
	IndexWriteFailures metric.Int64Counter
	StaleUnits         metric.Int64Counter
	ReindexDuration    metric.Float64Histogram
	HorizonEvictions   metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("booking-search-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	indexWrites, err := meter.Int64Counter(
		"search.index.writes.total",
		metric.WithDescription("Total search document write batches"),
	)
	if err != nil {
		return nil, err
	}

	indexWriteFailures, err := meter.Int64Counter(
		"search.index.write_failures.total",
		metric.WithDescription("Total failed search document write attempts"),
	)
	if err != nil {
		return nil, err
	}

	staleUnits, err := meter.Int64Counter(
		"search.index.stale_units.total",
		metric.WithDescription("Units whose reindex exhausted all retries"),
	)
	if err != nil {
		return nil, err
	}

	reindexDuration, err := meter.Float64Histogram(
		"search.reindex.duration",
		metric.WithDescription("Reindex run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	horizonEvictions, err := meter.Int64Counter(
		"search.horizon.evictions.total",
		metric.WithDescription("Schedule documents evicted by horizon maintenance"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		IndexWrites:        indexWrites,
		IndexWriteFailures: indexWriteFailures,
		StaleUnits:         staleUnits,
		ReindexDuration:    reindexDuration,
		HorizonEvictions:   horizonEvictions,
	}, nil
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordReindex records the outcome of one reindex run.
func (m *Metrics) RecordReindex(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.ReindexDuration.Record(ctx, seconds, attrs)
}

// RecordWrite records one write-step attempt.
func (m *Metrics) RecordWrite(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.IndexWrites.Add(ctx, 1)
	} else {
		m.IndexWriteFailures.Add(ctx, 1)
	}
}

// RecordStaleUnit records a unit left stale after retry exhaustion.
func (m *Metrics) RecordStaleUnit(ctx context.Context) {
	if m == nil {
		return
	}
	m.StaleUnits.Add(ctx, 1)
}

// RecordHorizonEvictions records schedule documents dropped by horizon
// maintenance.
func (m *Metrics) RecordHorizonEvictions(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.HorizonEvictions.Add(ctx, n)
}
