package eval

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/metrics"
)

func writeUtterances(t *testing.T, path string, utterances []api.Utterance) {
	t.Helper()
	data, err := json.Marshal(utterances)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

type staticBaseline struct {
	snap *BaselineSnapshot
	err  error
}

func (s staticBaseline) Baseline(context.Context) (*BaselineSnapshot, error) {
	return s.snap, s.err
}

func TestRunnerRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	expected, actual := syntheticCorpus(12)
	writeUtterances(t, filepath.Join(dir, "expected.json"), expected)
	writeUtterances(t, filepath.Join(dir, "actual.json"), actual)

	cfg := DefaultConfig()
	cfg.ExpectedPath = filepath.Join(dir, "expected.json")
	cfg.ActualPath = filepath.Join(dir, "actual.json")
	cfg.OutputFolder = filepath.Join(dir, "out")
	cfg.TestLabel = "text"
	cfg.BuildID = "build-42"

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	result, err := NewRunner(WithMetrics(m)).Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "build-42", result.RunID)
	assert.Len(t, result.Records, 12)
	assert.Contains(t, result.Statistics, ScopeOverall)
	assert.False(t, result.Baseline.BaselineAvailable)

	assert.FileExists(t, filepath.Join(cfg.OutputFolder, MetadataFile))
	assert.FileExists(t, filepath.Join(cfg.OutputFolder, StatisticsFile))
	assert.NoFileExists(t, filepath.Join(cfg.OutputFolder, RegressionsFile))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompareRuns.WithLabelValues("ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.CasesCompared))
}

func TestRunnerRunConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	writeUtterances(t, filepath.Join(dir, "one.json"), []api.Utterance{utterance("a", "")})
	writeUtterances(t, filepath.Join(dir, "two.json"), []api.Utterance{utterance("a", ""), utterance("b", "")})

	cfg := DefaultConfig()
	cfg.OutputFolder = ""
	cfg.ExpectedPath = filepath.Join(dir, "one.json")
	cfg.ActualPath = filepath.Join(dir, "two.json")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	runner := NewRunner(WithMetrics(m))

	_, err := runner.Run(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrConfiguration))

	cfg.ActualPath = filepath.Join(dir, "missing.json")
	_, err = runner.Run(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrConfiguration))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CompareRuns.WithLabelValues("config_error")))
}

func TestRunnerStrictRegression(t *testing.T) {
	dir := t.TempDir()
	expected, actual := syntheticCorpus(8)

	cfg := DefaultConfig()
	cfg.OutputFolder = filepath.Join(dir, "good")

	good, err := NewRunner().Evaluate(context.Background(), cfg, expected, expected)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *good.Statistics[ScopeOverall].Metrics.F1)

	cfg.OutputFolder = filepath.Join(dir, "bad")
	cfg.BaselinePath = filepath.Join(dir, "good", StatisticsFile)
	cfg.Strict = true

	result, err := NewRunner().Evaluate(context.Background(), cfg, expected, actual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegressionsDetected))
	require.NotNil(t, result)
	assert.True(t, result.Baseline.BaselineAvailable)
	assert.True(t, result.Baseline.HasRegressions())
	assert.FileExists(t, filepath.Join(cfg.OutputFolder, RegressionsFile))

	cfg.Strict = false
	result, err = NewRunner().Evaluate(context.Background(), cfg, expected, actual)
	require.NoError(t, err)
	assert.True(t, result.Baseline.HasRegressions())
}

func TestRunnerBaselineSource(t *testing.T) {
	expected, _ := syntheticCorpus(4)
	cfg := DefaultConfig()
	cfg.OutputFolder = ""

	snap := &BaselineSnapshot{
		ID:         "build-41",
		Statistics: map[string]ScopeStatistics{ScopeOverall: scopeWithPrecision(1)},
	}
	result, err := NewRunner(WithBaselineSource(staticBaseline{snap: snap})).
		Evaluate(context.Background(), cfg, expected, expected)
	require.NoError(t, err)
	assert.True(t, result.Baseline.BaselineAvailable)
	assert.Equal(t, "build-41", result.Baseline.BaselineID)
	assert.False(t, result.Baseline.HasRegressions())

	// store failures degrade to "no baseline"
	result, err = NewRunner(WithBaselineSource(staticBaseline{err: errors.New("connection refused")})).
		Evaluate(context.Background(), cfg, expected, expected)
	require.NoError(t, err)
	assert.False(t, result.Baseline.BaselineAvailable)
}

func TestRunnerGeneratesRunID(t *testing.T) {
	expected, _ := syntheticCorpus(2)
	cfg := DefaultConfig()
	cfg.OutputFolder = ""

	a, err := NewRunner().Evaluate(context.Background(), cfg, expected, expected)
	require.NoError(t, err)
	b, err := NewRunner().Evaluate(context.Background(), cfg, expected, expected)
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}
