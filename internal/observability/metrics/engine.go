package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

const engineMeterName = "notification.engine"

// EngineMetrics instruments the throttle decision path and the dispatch
// pipeline.
type EngineMetrics struct {
	decisions        metric.Int64Counter
	enqueued         metric.Int64Counter
	decisionDuration metric.Float64Histogram
	queueDepth       metric.Int64UpDownCounter
}

func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(engineMeterName)

	decisions, err := meter.Int64Counter(
		"notification_decisions_total",
		metric.WithDescription("Total throttle decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	enqueued, err := meter.Int64Counter(
		"notification_enqueued_total",
		metric.WithDescription("Notifications handed to the dispatch queue"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	decisionDuration, err := meter.Float64Histogram(
		"notification_decision_duration_seconds",
		metric.WithDescription("Time spent evaluating one throttle decision"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1,
		),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64UpDownCounter(
		"notification_queue_depth",
		metric.WithDescription("Notifications waiting in the dispatch queue"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		decisions:        decisions,
		enqueued:         enqueued,
		decisionDuration: decisionDuration,
		queueDepth:       queueDepth,
	}, nil
}

func (m *EngineMetrics) RecordDecision(ctx context.Context, camera string, class domain.NotificationClass, outcome domain.DecisionOutcome) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("camera", camera),
		attribute.String("class", class.String()),
		attribute.String("outcome", string(outcome)),
	))
}

func (m *EngineMetrics) RecordEnqueued(ctx context.Context, class domain.NotificationClass, count int) {
	m.enqueued.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("class", class.String()),
	))
	m.queueDepth.Add(ctx, int64(count))
}

func (m *EngineMetrics) RecordDequeued(ctx context.Context) {
	m.queueDepth.Add(ctx, -1)
}

func (m *EngineMetrics) RecordDecisionDuration(ctx context.Context, class domain.NotificationClass, duration time.Duration) {
	m.decisionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("class", class.String()),
	))
}
