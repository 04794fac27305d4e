package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/linkauth/cmd/linkauthd/internal/config"
	otelexport "github.com/MrEthical07/linkauth/metrics/export/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const serviceName = "linkauthd"

// newOTLPReader pushes metrics to c.OTLPEndpoint every c.OTLPInterval.
func newOTLPReader(ctx context.Context, c *config.Config) (sdkmetric.Reader, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.OTLPEndpoint)}
	if c.OTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(c.OTLPInterval)), nil
}

// startMetricsExport registers the engine counters on a meter provider backed
// by reader. The returned function unregisters and flushes.
func startMetricsExport(reader sdkmetric.Reader, source otelexport.Source) (func(context.Context) error, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	exporter, err := otelexport.New(provider.Meter(serviceName), source)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(exporter.Close(), provider.Shutdown(ctx))
	}, nil
}
