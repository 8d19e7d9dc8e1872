package obs

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig mirrors the OTEL_* settings read by cmd/api.
type TracingConfig struct {
	ServiceName   string
	Endpoint      string
	Exporter      string // otlp (default) or none
	SamplingRatio float64
	Environment   string
}

// ShutdownFunc flushes buffered spans.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

func (c TracingConfig) ratio() float64 {
	if c.SamplingRatio <= 0 || c.SamplingRatio > 1 {
		return 1
	}
	return c.SamplingRatio
}

func (c TracingConfig) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch kind := strings.ToLower(strings.TrimSpace(c.Exporter)); kind {
	case "", "otlp":
		var opts []otlptracehttp.Option
		if ep := strings.TrimSpace(c.Endpoint); ep != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(ep))
		}
		return otlptracehttp.New(ctx, opts...)
	case "none", "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("tracing exporter %q not supported", kind)
	}
}

// InitTracer installs a global tracer provider. With exporter "none" the
// default no-op provider stays in place and the returned func does nothing.
func InitTracer(ctx context.Context, cfg TracingConfig) (ShutdownFunc, error) {
	exp, err := cfg.exporter(ctx)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return noopShutdown, nil
	}
	name := cfg.ServiceName
	if name == "" {
		name = "invoice-manager"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.ratio()))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return provider.Shutdown, nil
}
