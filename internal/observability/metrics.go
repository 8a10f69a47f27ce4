package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "newsanalytics"

// Metrics holds the service's metric instruments.
type Metrics struct {
	HTTPRequestCount    metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Counter store activity
	TrackHits metric.Int64Counter
	HideCount metric.Int64Counter
}

// InitMetrics initializes and returns metric instruments.
func InitMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	m := &Metrics{}

	var err error
	m.HTTPRequestCount, err = meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request count counter: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request_duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.TrackHits, err = meter.Int64Counter(
		"news.track.hits",
		metric.WithDescription("View hits recorded through /track"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create track hits counter: %w", err)
	}

	m.HideCount, err = meter.Int64Counter(
		"news.hide.count",
		metric.WithDescription("Hide requests handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hide counter: %w", err)
	}

	return m, nil
}

// initMeterProvider builds a meter provider with a periodic stdout reader.
func initMeterProvider(cfg *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.writer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

// RecordTrackHit counts one successful /track call.
func (t *Telemetry) RecordTrackHit(ctx context.Context) {
	if m := t.Metrics(); m != nil {
		m.TrackHits.Add(ctx, 1)
	}
}

// RecordHide counts one hide request; hidden says whether a row matched.
func (t *Telemetry) RecordHide(ctx context.Context, hidden bool) {
	if m := t.Metrics(); m != nil {
		m.HideCount.Add(ctx, 1, metric.WithAttributes(AttrNewsMatched.Bool(hidden)))
	}
}
