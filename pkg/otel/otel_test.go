package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("test-service")

	if config.ServiceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got '%s'", config.ServiceName)
	}

	if config.ServiceVersion == "" {
		t.Error("Service version should not be empty")
	}

	if config.CollectorEndpoint == "" {
		t.Error("Collector endpoint should not be empty")
	}

	if config.SamplingRate < 0.0 || config.SamplingRate > 1.0 {
		t.Errorf("Sampling rate out of bounds: %.2f", config.SamplingRate)
	}
}

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("run-123", "nightly", 42, false)

	if len(attrs) != 4 {
		t.Errorf("Expected 4 attributes, got %d", len(attrs))
	}

	found := false
	for _, attr := range attrs {
		if attr.Key == AttrRunID && attr.Value.AsString() == "run-123" {
			found = true
			break
		}
	}
	if !found {
		t.Error("RunID attribute not found")
	}

	// Without label
	attrs = RunAttributes("run-123", "", 42, true)
	if len(attrs) != 3 {
		t.Errorf("Expected 3 attributes without label, got %d", len(attrs))
	}
}

func TestBaselineAttributes(t *testing.T) {
	attrs := BaselineAttributes("build-41", 2)
	if len(attrs) != 2 {
		t.Errorf("Expected 2 attributes with baseline id, got %d", len(attrs))
	}

	attrs = BaselineAttributes("", 0)
	if len(attrs) != 1 {
		t.Errorf("Expected 1 attribute without baseline id, got %d", len(attrs))
	}
}

func TestOutcomeAttributes(t *testing.T) {
	attrs := OutcomeAttributes(7, 1)

	if len(attrs) != 2 {
		t.Errorf("Expected 2 attributes, got %d", len(attrs))
	}
}

func TestProviderAttributes(t *testing.T) {
	attrs := ProviderAttributes("http://localhost:8080", 3)

	if len(attrs) != 2 {
		t.Errorf("Expected 2 attributes, got %d", len(attrs))
	}
	if attrs[1].Value.AsInt64() != 3 {
		t.Errorf("Expected attempt 3, got %d", attrs[1].Value.AsInt64())
	}
}

func TestSpeechAttributes(t *testing.T) {
	attrs := SpeechAttributes("rec-1.wav", true)

	if len(attrs) != 2 || !attrs[1].Value.AsBool() {
		t.Errorf("Expected cache hit attribute, got %v", attrs)
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// This will use the global no-op tracer since we haven't initialized OTel
	ctx, span := StartSpan(ctx, "test-tracer", "test-span",
		attribute.String("test.key", "test.value"),
	)

	if ctx == nil {
		t.Error("Context should not be nil")
	}

	if span == nil {
		t.Error("Span should not be nil")
	}

	span.End()
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "test-tracer", "test-span")

	// Should not panic
	RecordError(span, nil, "")
	RecordError(span, nil, "test message")

	span.End()
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()
	_, span := StartSpan(ctx, "test-tracer", "test-span")

	// Should not panic
	AddEvent(span, "test-event")
	AddEvent(span, "test-event-with-attrs",
		attribute.String("key", "value"),
	)

	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test-tracer", "parent")
	defer span.End()

	if got := SpanFromContext(ctx); got == nil {
		t.Error("Span should not be nil")
	}
	if got := SpanFromContext(context.Background()); got == nil {
		t.Error("No-op span should not be nil")
	}
}
