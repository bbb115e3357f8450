package decisionlog

import (
	"context"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

type influxDBRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewRecorder builds the throttle decision recorder. When recording is
// disabled or InfluxDB is not configured it degrades to a noop so the
// decision path never depends on analytics being available.
func NewRecorder(ctx context.Context, cfg *Config) (domain.ThrottleDecisionRecorder, error) {
	if cfg.Disabled {
		slog.InfoContext(ctx, "throttle decision recording disabled")
		return NewNoopRecorder(), nil
	}

	if cfg.InfluxDBToken == "" || cfg.InfluxDBOrg == "" {
		slog.WarnContext(ctx, "InfluxDB token or org not configured, throttle decision recording disabled",
			slog.String("url", cfg.InfluxDBURL),
		)
		return NewNoopRecorder(), nil
	}

	client := influxdb2.NewClient(cfg.InfluxDBURL, cfg.InfluxDBToken)
	writeAPI := client.WriteAPIBlocking(cfg.InfluxDBOrg, cfg.InfluxDBBucket)

	slog.InfoContext(ctx, "throttle decision recorder initialized",
		slog.String("type", "influxdb"),
		slog.String("url", cfg.InfluxDBURL),
		slog.String("bucket", cfg.InfluxDBBucket),
	)

	return &influxDBRecorder{
		client:   client,
		writeAPI: writeAPI,
		bucket:   cfg.InfluxDBBucket,
		org:      cfg.InfluxDBOrg,
	}, nil
}

func (r *influxDBRecorder) RecordDecision(ctx context.Context, decision domain.ThrottleDecision) error {
	point := influxdb2.NewPoint(
		"notification_decision",
		map[string]string{
			"camera":  decision.Camera,
			"class":   decision.Class.String(),
			"outcome": string(decision.Outcome),
		},
		map[string]any{
			"normalized_weight":  decision.NormalizedWeight,
			"dynamic_factor":     decision.DynamicFactor,
			"multiplier":         decision.Multiplier,
			"effective_cooldown": decision.EffectiveCooldown,
		},
		decision.At,
	)

	if err := r.writeAPI.WritePoint(ctx, point); err != nil {
		slog.WarnContext(ctx, "failed to write throttle decision to InfluxDB",
			slog.String("error", err.Error()),
			slog.String("camera", decision.Camera),
			slog.String("outcome", string(decision.Outcome)),
		)
	}

	return nil
}

func (r *influxDBRecorder) Flush(_ context.Context) error {
	return nil
}

func (r *influxDBRecorder) Close() error {
	if r.client != nil {
		r.client.Close()
	}
	return nil
}
