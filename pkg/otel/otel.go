// Package otel wires OpenTelemetry tracing for comparison runs and provider
// test drives. Without InitTracer the global no-op provider is used, so spans
// cost nothing in tests and plain CLI runs.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName          string
	ServiceVersion       string
	Environment          string
	CollectorEndpoint    string
	CollectorInsecure    bool
	SamplingRate         float64 // 0.0 to 1.0 (1.0 = always sample)
	MaxEventsPerSpan     int
	MaxAttributesPerSpan int
}

// DefaultConfig returns defaults for a local collector
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:          serviceName,
		ServiceVersion:       "0.1.0",
		Environment:          "ci",
		CollectorEndpoint:    "localhost:4317",
		CollectorInsecure:    true,
		SamplingRate:         1.0,
		MaxEventsPerSpan:     128,
		MaxAttributesPerSpan: 128,
	}
}

// InitTracer initializes OpenTelemetry tracing and installs the provider
// globally
func InitTracer(ctx context.Context, config *Config) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultConfig("nlu-eval")
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.CollectorEndpoint)}
	if config.CollectorInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
		sdktrace.WithSpanLimits(sdktrace.SpanLimits{
			EventCountLimit:     config.MaxEventsPerSpan,
			AttributeCountLimit: config.MaxAttributesPerSpan,
		}),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return tp.Shutdown(ctx)
}

// StartSpan is a convenience wrapper for starting a span with common attributes
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	return ctx, span
}

// SpanFromContext returns the current span, a no-op span when there is none
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// RecordError records an error on a span with optional message
func RecordError(span trace.Span, err error, message string) {
	if span == nil || err == nil {
		return
	}

	if message != "" {
		span.RecordError(err, trace.WithAttributes(
			attribute.String("error.message", message),
		))
	} else {
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds an event to a span with optional attributes
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys
const (
	// Run attributes
	AttrRunID     = attribute.Key("nlu.run_id")
	AttrTestLabel = attribute.Key("nlu.test_label")
	AttrCaseCount = attribute.Key("nlu.case_count")
	AttrUnitTest  = attribute.Key("nlu.unit_test")

	// Outcome attributes
	AttrWarnings    = attribute.Key("nlu.warnings")
	AttrScopes      = attribute.Key("nlu.scopes")
	AttrBaselineID  = attribute.Key("baseline.id")
	AttrRegressions = attribute.Key("baseline.regressions")

	// Provider attributes
	AttrEndpoint    = attribute.Key("provider.endpoint")
	AttrAttempt     = attribute.Key("provider.attempt")
	AttrErrorKind   = attribute.Key("provider.error_kind")
	AttrRecordingID = attribute.Key("speech.recording_id")
	AttrCacheHit    = attribute.Key("speech.cache_hit")
)

// RunAttributes describes a comparison run
func RunAttributes(runID, testLabel string, cases int, unitTest bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrCaseCount.Int(cases),
		AttrUnitTest.Bool(unitTest),
	}
	if testLabel != "" {
		attrs = append(attrs, AttrTestLabel.String(testLabel))
	}
	return attrs
}

// OutcomeAttributes describes what a run produced
func OutcomeAttributes(scopes, warnings int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrScopes.Int(scopes),
		AttrWarnings.Int(warnings),
	}
}

// BaselineAttributes describes a baseline comparison
func BaselineAttributes(baselineID string, regressions int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrRegressions.Int(regressions),
	}
	if baselineID != "" {
		attrs = append(attrs, AttrBaselineID.String(baselineID))
	}
	return attrs
}

// ProviderAttributes describes one provider call attempt
func ProviderAttributes(endpoint string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEndpoint.String(endpoint),
		AttrAttempt.Int(attempt),
	}
}

// SpeechAttributes describes a transcription lookup
func SpeechAttributes(recordingID string, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRecordingID.String(recordingID),
		AttrCacheHit.Bool(cacheHit),
	}
}
