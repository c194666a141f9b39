// Package driver runs a set of expected utterances through an NLU provider
// and collects the actual utterances it produced, in input order.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/cache"
	"github.com/fractal-lba/nlueval/internal/metrics"
	"github.com/fractal-lba/nlueval/internal/provider"
	"github.com/fractal-lba/nlueval/pkg/otel"
)

const tracerName = "nlueval/driver"

// DefaultConcurrency bounds in-flight provider queries.
const DefaultConcurrency = 4

// Driver queries a provider for every utterance of a test set.
type Driver struct {
	provider    provider.Provider
	transcriber provider.Transcriber
	cache       *cache.Transcriptions
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Driver.
type Option func(*Driver)

// WithConcurrency sets the number of parallel queries.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRateLimit paces queries to qps with the given burst. qps <= 0 means
// unlimited.
func WithRateLimit(qps float64, burst int) Option {
	return func(d *Driver) {
		if qps <= 0 {
			d.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithTranscriber enables speech utterances. Transcriptions are looked up
// in c first; c may be nil.
func WithTranscriber(t provider.Transcriber, c *cache.Transcriptions) Option {
	return func(d *Driver) {
		d.transcriber = t
		d.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithMetrics records driver counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// New creates a Driver for p.
func New(p provider.Provider, opts ...Option) *Driver {
	d := &Driver{
		provider:    p,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Run queries the provider for every utterance and returns the actual
// utterances in the same order.
//
// A result slot is written only once its query fully completed. The first
// failed query cancels the rest; its error is returned together with the
// results gathered so far (unfinished slots hold the zero Utterance).
func (d *Driver) Run(ctx context.Context, utterances []api.Utterance) ([]api.Utterance, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "driver.Run",
		attribute.Int("driver.utterances", len(utterances)),
		attribute.Int("driver.concurrency", d.concurrency),
	)
	defer span.End()

	results := make([]api.Utterance, len(utterances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range utterances {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			actual, err := d.query(gctx, i, utterances[i])
			if err != nil {
				return fmt.Errorf("utterance %d: %w", i, err)
			}
			results[i] = actual
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		otel.RecordError(span, err, "test run failed")
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	d.logger.Info("test run complete", "utterances", len(utterances))
	return results, nil
}

func (d *Driver) query(ctx context.Context, index int, expected api.Utterance) (api.Utterance, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "driver.query", attribute.Int("driver.index", index))
	defer span.End()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return api.Utterance{}, err
		}
	}

	query := api.Utterance{Text: expected.Text, SpeechFile: expected.SpeechFile}

	if expected.SpeechFile != "" {
		text, err := d.transcribe(ctx, expected.SpeechFile)
		if err != nil {
			otel.RecordError(span, err, "transcription failed")
			return api.Utterance{}, err
		}
		query.Text = text
	}

	actual, err := d.provider.Test(ctx, query)
	if err != nil {
		otel.RecordError(span, err, "provider query failed")
		span.SetAttributes(otel.AttrErrorKind.String(string(provider.KindOf(err))))
		return api.Utterance{}, err
	}
	if actual.Text == "" {
		actual.Text = query.Text
	}
	actual.SpeechFile = expected.SpeechFile

	d.logger.Debug("utterance tested",
		"index", index,
		"intent", api.IntentName(actual.Intent),
		"entities", len(actual.Entities),
	)
	return actual, nil
}

func (d *Driver) transcribe(ctx context.Context, recordingID string) (string, error) {
	if d.transcriber == nil {
		return "", fmt.Errorf("utterance has speech file %q but no transcriber is configured", recordingID)
	}

	span := otel.SpanFromContext(ctx)
	if d.cache == nil {
		span.SetAttributes(otel.SpeechAttributes(recordingID, false)...)
		return d.transcriber.Transcribe(ctx, recordingID)
	}

	text, cached, err := d.cache.Get(ctx, recordingID, d.transcriber.Transcribe)
	span.SetAttributes(otel.SpeechAttributes(recordingID, cached)...)
	return text, err
}
