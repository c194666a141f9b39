package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/metrics"
	"github.com/fractal-lba/nlueval/pkg/otel"
)

const tracerName = "nlueval/eval"

// RunResult is everything a comparison run produced.
type RunResult struct {
	RunID      string                     `json:"runId"`
	TestLabel  string                     `json:"testLabel,omitempty"`
	Records    []CaseRecord               `json:"records"`
	Statistics map[string]ScopeStatistics `json:"statistics"`
	Warnings   []Warning                  `json:"warnings"`
	Baseline   *BaselineReport            `json:"baseline"`
}

// Runner orchestrates pairing, classification, aggregation, baseline
// comparison and artifact output.
type Runner struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	baseline BaselineSource
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithBaselineSource supplies the baseline when Config.BaselinePath is empty.
func WithBaselineSource(src BaselineSource) RunnerOption {
	return func(r *Runner) { r.baseline = src }
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run loads the expected and actual files named by cfg and evaluates them.
func (r *Runner) Run(ctx context.Context, cfg Config) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		r.countRun("config_error")
		return nil, err
	}

	expected, err := LoadUtterances(cfg.ExpectedPath)
	if err != nil {
		r.countRun("config_error")
		return nil, err
	}
	actual, err := LoadUtterances(cfg.ActualPath)
	if err != nil {
		r.countRun("config_error")
		return nil, err
	}

	return r.Evaluate(ctx, cfg, expected, actual)
}

// Evaluate compares in-memory utterances under cfg. Input paths in cfg are
// ignored.
//
// A strict run that found regressions returns the full result together with
// an error wrapping ErrRegressionsDetected.
func (r *Runner) Evaluate(ctx context.Context, cfg Config, expected, actual []api.Utterance) (*RunResult, error) {
	start := time.Now()

	if err := cfg.validateSettings(); err != nil {
		r.countRun("config_error")
		return nil, err
	}

	runID := cfg.BuildID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, span := otel.StartSpan(ctx, tracerName, "eval.Evaluate",
		otel.RunAttributes(runID, cfg.TestLabel, len(expected), cfg.UnitTest)...)
	defer span.End()

	logger := r.logger.With("run_id", runID)

	cases, err := Pair(expected, actual, cfg.TestLabel)
	if err != nil {
		otel.RecordError(span, err, "pairing failed")
		r.countRun("config_error")
		return nil, err
	}

	records, stats, warnings, err := Aggregate(ctx, cases, AggregateOptions{
		Classify:    ClassifyOptions{UnitTest: cfg.UnitTest},
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		otel.RecordError(span, err, "aggregation failed")
		r.countRun("error")
		return nil, err
	}

	result := &RunResult{
		RunID:      runID,
		TestLabel:  cfg.TestLabel,
		Records:    records,
		Statistics: stats.Results(),
		Warnings:   warnings,
	}
	if result.Warnings == nil {
		result.Warnings = []Warning{}
	}
	otel.AddEvent(span, "aggregated", otel.OutcomeAttributes(len(result.Statistics), len(warnings))...)

	snap := r.loadBaseline(ctx, cfg, logger)
	var baselineStats map[string]ScopeStatistics
	var baselineID string
	if snap != nil {
		baselineStats = snap.Statistics
		baselineID = snap.ID
		if baselineStats == nil {
			baselineStats = map[string]ScopeStatistics{}
		}
	}
	result.Baseline = CompareBaseline(result.Statistics, baselineStats, cfg.Tolerance, cfg.ToleranceOverrides)
	result.Baseline.BaselineID = baselineID

	regressions := result.Baseline.Regressions()
	span.SetAttributes(otel.BaselineAttributes(baselineID, len(regressions))...)
	for _, f := range regressions {
		logger.Warn("metric regressed",
			"scope", f.Scope,
			"metric", f.Metric,
			"baseline", *f.Baseline,
			"current", *f.Current,
			"tolerance", f.Tolerance,
		)
	}

	if cfg.OutputFolder != "" {
		if err := NewReportWriter(cfg.OutputFolder).WriteAll(result); err != nil {
			otel.RecordError(span, err, "artifact write failed")
			r.countRun("error")
			return nil, fmt.Errorf("failed to write artifacts: %w", err)
		}
	}

	r.observe(result, cases, time.Since(start))

	logger.Info("comparison complete",
		"label", cfg.TestLabel,
		"cases", len(cases),
		"scopes", len(result.Statistics),
		"warnings", len(result.Warnings),
		"baseline_available", result.Baseline.BaselineAvailable,
		"regressions", len(regressions),
		"duration", time.Since(start),
	)

	if cfg.Strict && len(regressions) > 0 {
		r.countRun("regressed")
		return result, fmt.Errorf("%w: %d metric(s) beyond tolerance", ErrRegressionsDetected, len(regressions))
	}
	r.countRun("ok")
	return result, nil
}

// loadBaseline resolves the baseline. Unreadable or malformed baselines are
// logged and treated as unavailable.
func (r *Runner) loadBaseline(ctx context.Context, cfg Config, logger *slog.Logger) *BaselineSnapshot {
	var (
		snap *BaselineSnapshot
		err  error
	)
	switch {
	case cfg.BaselinePath != "":
		snap, err = LoadBaselineFile(cfg.BaselinePath)
	case r.baseline != nil:
		snap, err = r.baseline.Baseline(ctx)
	default:
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logger.Warn("baseline unavailable", "error", err)
		return nil
	}
	if snap == nil {
		logger.Info("no baseline found")
	}
	return snap
}

func (r *Runner) observe(result *RunResult, cases []TestCase, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.CompareDuration.Observe(elapsed.Seconds())
	r.metrics.CasesCompared.Add(float64(len(cases)))
	for _, rec := range result.Records {
		for _, j := range rec.Judgments {
			r.metrics.Outcomes.WithLabelValues(string(j.Target), j.Outcome.String()).Inc()
		}
	}
	for _, w := range result.Warnings {
		r.metrics.Warnings.WithLabelValues(string(w.Kind)).Inc()
	}
	for _, f := range result.Baseline.Regressions() {
		r.metrics.Regressions.WithLabelValues(f.Metric).Inc()
	}
}

func (r *Runner) countRun(result string) {
	if r.metrics != nil {
		r.metrics.CompareRuns.WithLabelValues(result).Inc()
	}
}

// sortedScopes orders overall first, then the remaining scopes by name.
func sortedScopes(stats map[string]ScopeStatistics) []string {
	scopes := make([]string, 0, len(stats))
	for scope := range stats {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i] == ScopeOverall || scopes[j] == ScopeOverall {
			return scopes[i] == ScopeOverall && scopes[j] != ScopeOverall
		}
		return scopes[i] < scopes[j]
	})
	return scopes
}
