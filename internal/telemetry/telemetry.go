package telemetry

import (
	"context"

	"github.com/giobyte8/gallerist/internal/telemetry/metrics"
)

type Config struct {
	OtelEnabled           bool
	OtelCollectorEndpoint string
}

type TelemetrySvc struct {
	metrics metrics.MetricsSvc
}

func NewTelemetrySvc(ctx context.Context, cfg Config) (*TelemetrySvc, error) {
	var metricsSvc metrics.MetricsSvc
	var err error

	if cfg.OtelEnabled {
		metricsSvc, err = metrics.NewOtelMetricsSvc(
			ctx,
			cfg.OtelCollectorEndpoint,
		)
		if err != nil {
			return nil, err
		}
	} else {
		metricsSvc = metrics.NewNoopMetricsSvc()
	}

	return &TelemetrySvc{
		metrics: metricsSvc,
	}, nil
}

// NewWithMetrics wraps an existing metrics service.
func NewWithMetrics(metricsSvc metrics.MetricsSvc) *TelemetrySvc {
	return &TelemetrySvc{metrics: metricsSvc}
}

func (t *TelemetrySvc) Metrics() metrics.MetricsSvc {
	return t.metrics
}

func (t *TelemetrySvc) Shutdown(ctx context.Context) error {
	return t.metrics.Shutdown(ctx)
}
