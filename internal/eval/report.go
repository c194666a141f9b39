package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

// Artifact file names.
const (
	MetadataFile    = "metadata.json"
	StatisticsFile  = "statistics.json"
	RegressionsFile = "regressions.json"
)

// ReportWriter persists run artifacts into an output folder.
type ReportWriter struct {
	outputDir string
}

// NewReportWriter creates a writer for outputDir.
func NewReportWriter(outputDir string) *ReportWriter {
	return &ReportWriter{outputDir: outputDir}
}

// WriteAll writes metadata.json, statistics.json and, when a baseline was
// compared, regressions.json.
func (w *ReportWriter) WriteAll(result *RunResult) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	if err := w.writeJSON(MetadataFile, result.Records); err != nil {
		return fmt.Errorf("metadata write failed: %w", err)
	}
	if err := w.writeJSON(StatisticsFile, result.Statistics); err != nil {
		return fmt.Errorf("statistics write failed: %w", err)
	}
	if result.Baseline != nil && result.Baseline.BaselineAvailable {
		if err := w.writeJSON(RegressionsFile, result.Baseline); err != nil {
			return fmt.Errorf("regressions write failed: %w", err)
		}
	}
	return nil
}

func (w *ReportWriter) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.outputDir, name), data, 0644)
}

// WriteSummary prints a statistics table plus the baseline findings.
func WriteSummary(out io.Writer, result *RunResult) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "SCOPE\tTP\tFP\tTN\tFN\tPRECISION\tRECALL\tF1\tACCURACY\n")
	for _, scope := range sortedScopes(result.Statistics) {
		s := result.Statistics[scope]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			scope,
			s.Counts.TruePositives,
			s.Counts.FalsePositives,
			s.Counts.TrueNegatives,
			s.Counts.FalseNegatives,
			formatMetric(s.Metrics.Precision),
			formatMetric(s.Metrics.Recall),
			formatMetric(s.Metrics.F1),
			formatMetric(s.Metrics.Accuracy),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\n%d data-quality warning(s)\n", len(result.Warnings))
	}

	switch {
	case result.Baseline == nil || !result.Baseline.BaselineAvailable:
		fmt.Fprintln(out, "\nno baseline available")
	case len(result.Baseline.Findings) == 0:
		fmt.Fprintln(out, "\nno change against baseline")
	default:
		var b strings.Builder
		for _, f := range result.Baseline.Findings {
			switch f.Kind {
			case FindingRegression:
				fmt.Fprintf(&b, "  REGRESSION %s: %s -> %s (tolerance %.2f)\n",
					f.Name(), formatMetric(f.Baseline), formatMetric(f.Current), f.Tolerance)
			case FindingNewScope:
				fmt.Fprintf(&b, "  new scope %s\n", f.Scope)
			}
		}
		fmt.Fprintf(out, "\nbaseline comparison:\n%s", b.String())
	}
	return nil
}

func formatMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
