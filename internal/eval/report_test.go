package eval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *RunResult {
	stats := NewStatistics()
	stats.Accumulate(ScopeOverall, TruePositive)
	stats.Accumulate(EntityScope("City"), TruePositive)
	stats.Accumulate(ScopeIntent, FalseNegative)

	return &RunResult{
		RunID:      "run-1",
		Records:    []CaseRecord{{Index: 0}},
		Statistics: stats.Results(),
		Warnings:   []Warning{},
	}
}

func TestReportWriterWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	result := sampleResult()
	result.Baseline = &BaselineReport{BaselineAvailable: true, Tolerance: 0.05, Findings: []RegressionFinding{}}

	require.NoError(t, NewReportWriter(dir).WriteAll(result))

	for _, name := range []string{MetadataFile, StatisticsFile, RegressionsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	data, err := os.ReadFile(filepath.Join(dir, StatisticsFile))
	require.NoError(t, err)
	var stats map[string]ScopeStatistics
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, result.Statistics, stats)
}

func TestReportWriterSkipsRegressionsWithoutBaseline(t *testing.T) {
	dir := t.TempDir()
	result := sampleResult()
	result.Baseline = &BaselineReport{Findings: []RegressionFinding{}}

	require.NoError(t, NewReportWriter(dir).WriteAll(result))
	assert.NoFileExists(t, filepath.Join(dir, RegressionsFile))
}

func TestWriteSummary(t *testing.T) {
	result := sampleResult()
	result.Baseline = &BaselineReport{
		BaselineAvailable: true,
		Findings: []RegressionFinding{
			{Kind: FindingRegression, Scope: ScopeOverall, Metric: MetricPrecision, Baseline: ptr(0.9), Current: ptr(0.8), Delta: -0.1, Tolerance: 0.05},
			{Kind: FindingNewScope, Scope: EntityScope("Ordinal")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, result))
	out := buf.String()

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "SCOPE"))
	assert.True(t, strings.HasPrefix(lines[1], ScopeOverall))
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "REGRESSION overall/precision: 0.90 -> 0.80")
	assert.Contains(t, out, "new scope entity:Ordinal")
}

func TestWriteSummaryWithoutBaseline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleResult()))
	assert.Contains(t, buf.String(), "no baseline available")
}

func TestSortedScopesPutsOverallFirst(t *testing.T) {
	stats := map[string]ScopeStatistics{EntityScope("City"): {}, ScopeOverall: {}, EntityScope("Airport"): {}, ScopeIntent: {}}
	assert.Equal(t, []string{ScopeOverall, EntityScope("Airport"), EntityScope("City"), ScopeIntent}, sortedScopes(stats))
}
