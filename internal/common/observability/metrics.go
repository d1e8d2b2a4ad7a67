// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"exam-queue/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability records synchronization attempts through an otel meter
// exported to Prometheus. A zero value records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	syncAttempts  otelmetric.Int64Counter
	syncDuration  otelmetric.Float64Histogram
	traceProvider *sdktrace.TracerProvider
	tracer        trace.Tracer
	logger        logger.Logger
}

// New wires the exporter into reg. On failure it logs and returns an
// instance that only traces, so the service keeps running without these
// metrics. traceOpts configure the tracer provider (span processors,
// sampler); without them spans are created but not exported.
func New(serviceName string, reg promclient.Registerer, log logger.Logger, traceOpts ...sdktrace.TracerProviderOption) *Observability {
	log = log.Component("observability")

	tp := sdktrace.NewTracerProvider(traceOpts...)
	tracer := tp.Tracer(serviceName)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{traceProvider: tp, tracer: tracer, logger: log}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	syncAttempts, err := meter.Int64Counter(
		"sync.attempts",
		otelmetric.WithDescription("Data source attempts by provider and result"),
	)
	if err != nil {
		log.Warn("Failed to create sync.attempts counter", map[string]interface{}{"error": err})
	}

	syncDuration, err := meter.Float64Histogram(
		"sync.duration",
		otelmetric.WithDescription("Duration of data source attempts"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		log.Warn("Failed to create sync.duration histogram", map[string]interface{}{"error": err})
	}

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		syncAttempts:  syncAttempts,
		syncDuration:  syncDuration,
		traceProvider: tp,
		tracer:        tracer,
		logger:        log,
	}
}

// RecordSyncAttempt counts one attempt and its duration. operation is
// "bootstrap", "refresh" or "reload"; provider names the data source.
func (o *Observability) RecordSyncAttempt(ctx context.Context, operation, provider string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	if o.syncAttempts != nil {
		o.syncAttempts.Add(ctx, 1, attrs)
	}
	if o.syncDuration != nil {
		o.syncDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("Meter provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
	if o.traceProvider != nil {
		if err := o.traceProvider.Shutdown(ctx); err != nil {
			o.logger.Warn("Tracer provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
}
