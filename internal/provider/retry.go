package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/metrics"
	"github.com/fractal-lba/nlueval/pkg/otel"
)

const tracerName = "nlueval/provider"

// DefaultMaxTries caps attempts per query, the first one included.
const DefaultMaxTries = 5

// RetryConfig tunes the Retrying wrapper.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// DefaultRetryConfig returns the defaults used by the test driver.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        DefaultMaxTries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Retrying retries rate-limited, conflicting and transient failures of the
// wrapped provider with exponential backoff. Fatal failures and context
// cancellation end the attempt at once. When every try fails the last
// error is returned.
type Retrying struct {
	next Provider
	cfg  RetryConfig
}

// WithRetry wraps p.
func WithRetry(p Provider, cfg RetryConfig) *Retrying {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retrying{next: p, cfg: cfg}
}

// Test implements Provider.
func (r *Retrying) Test(ctx context.Context, u api.Utterance) (api.Utterance, error) {
	return retry(ctx, r.cfg, "provider.Test", endpointOf(r.next), func(ctx context.Context) (api.Utterance, error) {
		return r.next.Test(ctx, u)
	})
}

// RetryingTranscriber applies the same policy to a Transcriber.
type RetryingTranscriber struct {
	next Transcriber
	cfg  RetryConfig
}

// WithTranscriberRetry wraps t.
func WithTranscriberRetry(t Transcriber, cfg RetryConfig) *RetryingTranscriber {
	return &RetryingTranscriber{next: t, cfg: WithRetry(nil, cfg).cfg}
}

// Transcribe implements Transcriber.
func (r *RetryingTranscriber) Transcribe(ctx context.Context, recordingID string) (string, error) {
	return retry(ctx, r.cfg, "provider.Transcribe", endpointOf(r.next), func(ctx context.Context) (string, error) {
		return r.next.Transcribe(ctx, recordingID)
	})
}

// endpointOf returns the base URL of providers that expose one.
func endpointOf(v any) string {
	if e, ok := v.(interface{ Endpoint() string }); ok {
		return e.Endpoint()
	}
	return ""
}

// retry runs call under backoff, one span per attempt.
func retry[T any](ctx context.Context, cfg RetryConfig, spanName, endpoint string, call func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	attempt := 0
	op := func() (T, error) {
		attempt++
		actx, span := otel.StartSpan(ctx, tracerName, spanName, otel.ProviderAttributes(endpoint, attempt)...)
		defer span.End()

		v, err := call(actx)
		if err == nil {
			countRequest(cfg.Metrics, "ok")
			return v, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return v, backoff.Permanent(err)
		}

		kind := KindOf(err)
		otel.RecordError(span, err, "provider call failed")
		span.SetAttributes(otel.AttrErrorKind.String(string(kind)))
		countRequest(cfg.Metrics, string(kind))
		if !kind.Retryable() {
			return v, backoff.Permanent(err)
		}

		if cfg.Metrics != nil {
			cfg.Metrics.ProviderRetries.WithLabelValues(string(kind)).Inc()
		}
		cfg.Logger.Debug("provider call failed, retrying",
			"attempt", attempt,
			"kind", kind,
			"error", err,
		)

		var perr *Error
		if errors.As(err, &perr) && perr.RetryAfter > 0 {
			return v, &retryAfter{err: err, after: backoff.RetryAfter(perr.RetryAfter)}
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		var ra *retryAfter
		if errors.As(err, &ra) {
			err = ra.err
		}
		return v, err
	}
	return v, nil
}

// retryAfter carries the server-requested delay to backoff while keeping
// the provider error for the caller.
type retryAfter struct {
	err   error
	after error
}

func (r *retryAfter) Error() string { return r.err.Error() }

// Unwrap exposes both errors so backoff finds its *RetryAfterError and
// callers still find the provider *Error.
func (r *retryAfter) Unwrap() []error { return []error{r.after, r.err} }

func countRequest(m *metrics.Metrics, result string) {
	if m != nil {
		m.ProviderRequests.WithLabelValues(result).Inc()
	}
}
