package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status label values shared by every business metric.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusinessMetrics records what the attachment and key vault use cases do.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("attachments", "attachment_encrypt_hybrid", "success").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes how long an operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordPayloadSize observes the plaintext size handled by an attachment operation.
	RecordPayloadSize(ctx context.Context, domain, operation string, size int64)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	payloadHisto     metric.Int64Histogram
}

// payloadBuckets spans small chat images up to the 2 GiB attachment ceiling.
var payloadBuckets = []float64{
	1 << 10, 16 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20, 256 << 20, 1 << 30, 2 << 30,
}

// NewBusinessMetrics creates the operation counter, duration and payload size histograms,
// all prefixed with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of attachment and key vault operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of attachment and key vault operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	payloadHisto, err := meter.Int64Histogram(
		fmt.Sprintf("%s_attachment_payload_bytes", namespace),
		metric.WithDescription("Plaintext size of encrypted and decrypted attachments"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(payloadBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payload histogram: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		payloadHisto:     payloadHisto,
	}, nil
}

func operationAttributes(domain, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("domain", domain),
		attribute.String("operation", operation),
	}
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	attrs := append(operationAttributes(domain, operation), attribute.String("status", status))
	b.operationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	attrs := append(operationAttributes(domain, operation), attribute.String("status", status))
	b.durationHisto.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (b *businessMetrics) RecordPayloadSize(ctx context.Context, domain, operation string, size int64) {
	if size < 0 {
		return
	}
	b.payloadHisto.Record(ctx, size, metric.WithAttributes(operationAttributes(domain, operation)...))
}

// KeyCacheStatsFunc reports the current key cache occupancy and its capacity.
type KeyCacheStatsFunc func() (size, capacity int)

// RegisterKeyCacheGauges exposes the key vault cache as two observable gauges,
// <namespace>_key_cache_entries and <namespace>_key_cache_capacity, read from stats at
// collection time. Unregister the returned registration before stats becomes invalid.
func RegisterKeyCacheGauges(
	meterProvider metric.MeterProvider,
	namespace string,
	stats KeyCacheStatsFunc,
) (metric.Registration, error) {
	if stats == nil {
		return nil, fmt.Errorf("key cache stats source is required")
	}

	meter := meterProvider.Meter(namespace)

	entries, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_key_cache_entries", namespace),
		metric.WithDescription("Server keys currently held in the key cache"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache entries gauge: %w", err)
	}

	capacity, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_key_cache_capacity", namespace),
		metric.WithDescription("Maximum number of server keys the key cache holds"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache capacity gauge: %w", err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		size, limit := stats()
		o.ObserveInt64(entries, int64(size))
		o.ObserveInt64(capacity, int64(limit))
		return nil
	}, entries, capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to register key cache callback: %w", err)
	}
	return registration, nil
}

// NoOpBusinessMetrics discards everything; used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

func (n *NoOpBusinessMetrics) RecordPayloadSize(ctx context.Context, domain, operation string, size int64) {}
