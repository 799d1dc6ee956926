// Package observe wires the OpenTelemetry meter provider to a Prometheus registry.
package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the telemetry providers
type ProviderConfig struct {
	// ServiceName defaults to "naduri-backend"
	ServiceName    string
	ServiceVersion string
	// Disabled yields a no-op meter provider and an empty /metrics handler
	Disabled bool
}

// Provider owns the meter provider and the registry it is scraped from
type Provider struct {
	MeterProvider metric.MeterProvider
	registry      *prometheus.Registry
	shutdown      func(context.Context) error
}

// InitProvider builds a meter provider backed by a private Prometheus registry and
// registers it as the global OTel meter provider.
func InitProvider(cfg ProviderConfig) (*Provider, error) {
	registry := prometheus.NewRegistry()
	if cfg.Disabled {
		return &Provider{
			MeterProvider: noop.NewMeterProvider(),
			registry:      registry,
			shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "naduri-backend"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promExp, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return &Provider{
		MeterProvider: mp,
		registry:      registry,
		shutdown:      mp.Shutdown,
	}, nil
}

// Handler serves the Prometheus exposition format
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
