// Package observability sets up OpenTelemetry tracing and metrics for the
// reconciliation service.
//
// With no OTLP endpoint configured the global no-op providers are used, so
// instruments are always safe to call.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "apatech.bookings"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string        // e.g. "localhost:4317"; empty disables export
	Insecure       bool          // plaintext gRPC (dev only)
	BatchTimeout   time.Duration // span batching
	ExportInterval time.Duration // metric push interval

	// MeterProvider and TracerProvider replace the OTLP pipeline when set.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "booking-reconciler",
		ServiceVersion: "1.0.0",
		BatchTimeout:   5 * time.Second,
		ExportInterval: 15 * time.Second,
		Insecure:       true,
	}
}

// Provider owns the trace and metric pipelines and the reconciler's instruments.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	cycles            metric.Int64Counter
	cycleErrors       metric.Int64Counter
	cycleDuration     metric.Float64Histogram
	skippedCycles     metric.Int64Counter
	sourceUnavailable metric.Int64Counter
	newRejections     metric.Int64Counter
	bookingsMerged    metric.Int64Histogram
}

// New creates the providers. Exporters are only started when an endpoint is set.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	var mp metric.MeterProvider = otel.GetMeterProvider()
	var tp trace.TracerProvider = otel.GetTracerProvider()

	switch {
	case config.MeterProvider != nil || config.TracerProvider != nil:
		if config.MeterProvider != nil {
			mp = config.MeterProvider
		}
		if config.TracerProvider != nil {
			tp = config.TracerProvider
		}
	case config.OTLPEndpoint != "":
		res, err := resource.Merge(
			resource.Default(),
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		if err := p.initTraceProvider(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init trace provider: %w", err)
		}
		if err := p.initMetricProvider(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init metric provider: %w", err)
		}
		mp, tp = p.meterProvider, p.tracerProvider
		p.logger.InfoContext(ctx, "observability initialized", "endpoint", config.OTLPEndpoint, "insecure", config.Insecure)
	default:
		p.logger.InfoContext(ctx, "observability export disabled")
	}

	p.tracer = tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = mp.Meter(instrumentationName, metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := p.config.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	if p.cycles, err = p.meter.Int64Counter("reconcile.cycles.total",
		metric.WithDescription("Reconciliation cycles run"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return err
	}
	if p.cycleErrors, err = p.meter.Int64Counter("reconcile.errors.total",
		metric.WithDescription("Reconciliation cycles that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if p.cycleDuration, err = p.meter.Float64Histogram("reconcile.cycle.duration",
		metric.WithDescription("Reconciliation cycle duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return err
	}
	if p.skippedCycles, err = p.meter.Int64Counter("reconcile.cycles.skipped",
		metric.WithDescription("Cycles skipped because another was in flight"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return err
	}
	if p.sourceUnavailable, err = p.meter.Int64Counter("reconcile.source.unavailable",
		metric.WithDescription("Sources that contributed nothing because they failed"),
		metric.WithUnit("{source}"),
	); err != nil {
		return err
	}
	if p.newRejections, err = p.meter.Int64Counter("notify.rejections.new",
		metric.WithDescription("Rejections announced for the first time"),
		metric.WithUnit("{booking}"),
	); err != nil {
		return err
	}
	if p.bookingsMerged, err = p.meter.Int64Histogram("reconcile.bookings.merged",
		metric.WithDescription("Bookings left after merging all sources"),
		metric.WithUnit("{booking}"),
	); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the exporters, if any were started.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

func (p *Provider) Meter() metric.Meter { return p.meter }

// A nil *Provider records nothing.

// TrackCycle starts a span for one reconciliation cycle. The returned func
// ends it and records duration and outcome.
func (p *Provider) TrackCycle(ctx context.Context, cycleID string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if p == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	attrs = append(attrs, attribute.String("cycle.id", cycleID))

	ctx, span := p.tracer.Start(ctx, "reconcile.cycle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	p.cycles.Add(ctx, 1)

	return ctx, func(err error) {
		p.cycleDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			p.cycleErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", fmt.Sprintf("%T", err))))
		}
		span.End()
	}
}

func (p *Provider) RecordSkipped(ctx context.Context) {
	if p == nil {
		return
	}
	p.skippedCycles.Add(ctx, 1)
}

// RecordSourceUnavailable counts a source that degraded to empty.
func (p *Provider) RecordSourceUnavailable(ctx context.Context, source string) {
	if p == nil {
		return
	}
	p.sourceUnavailable.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	trace.SpanFromContext(ctx).AddEvent("source unavailable", trace.WithAttributes(attribute.String("source", source)))
}

func (p *Provider) RecordNewRejections(ctx context.Context, n int) {
	if p != nil && n > 0 {
		p.newRejections.Add(ctx, int64(n))
	}
}

func (p *Provider) RecordMerged(ctx context.Context, n int) {
	if p == nil {
		return
	}
	p.bookingsMerged.Record(ctx, int64(n))
}
