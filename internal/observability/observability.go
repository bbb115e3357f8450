package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/sentriwatch/notification-engine/internal/observability/logging"
)

// Config controls observability bootstrap.
type Config struct {
	ServiceInfo logging.ServiceInfo
	LogLevel    slog.Level
}

// Resources holds everything Init set up, so main can shut it down.
type Resources struct {
	logger        *slog.Logger
	meterProvider *sdkmetric.MeterProvider
}

func (r *Resources) Logger() *slog.Logger {
	return r.logger
}

// Init configures logging and, when OTEL_EXPORTER_OTLP_ENDPOINT is set,
// metric export over OTLP/HTTP. Without an endpoint the global meter stays
// a noop and instruments are still safe to use.
func Init(ctx context.Context, cfg Config) (*Resources, error) {
	res := &Resources{
		logger: logging.NewLogger(cfg.LogLevel, cfg.ServiceInfo),
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return res, nil
	}

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, err
	}

	otelResource, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceInfo.Name),
			semconv.ServiceVersion(cfg.ServiceInfo.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(otelResource),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(provider)
	res.meterProvider = provider

	return res, nil
}

// Shutdown flushes and stops the metric pipeline.
func (r *Resources) Shutdown(ctx context.Context) error {
	if r.meterProvider == nil {
		return nil
	}
	return r.meterProvider.Shutdown(ctx)
}
