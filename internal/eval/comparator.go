package eval

import (
	"fmt"
	"sort"
)

// FindingKind classifies a baseline comparison finding.
type FindingKind string

const (
	// FindingRegression is a metric drop beyond tolerance.
	FindingRegression FindingKind = "regression"
	// FindingNewScope is a scope with no baseline counterpart. Informational.
	FindingNewScope FindingKind = "newScope"
)

// RegressionFinding names a scope (and, for regressions, a metric) that
// differs from the baseline.
type RegressionFinding struct {
	Kind      FindingKind `json:"kind"`
	Scope     string      `json:"scope"`
	Metric    string      `json:"metric,omitempty"`
	Baseline  *float64    `json:"baseline,omitempty"`
	Current   *float64    `json:"current,omitempty"`
	Delta     float64     `json:"delta,omitempty"` // current - baseline
	Tolerance float64     `json:"tolerance,omitempty"`
}

// Name returns "scope/metric" for regressions and the scope otherwise.
func (f RegressionFinding) Name() string {
	if f.Metric == "" {
		return f.Scope
	}
	return fmt.Sprintf("%s/%s", f.Scope, f.Metric)
}

// BaselineReport is the result of a baseline comparison.
type BaselineReport struct {
	BaselineAvailable bool                `json:"baselineAvailable"`
	BaselineID        string              `json:"baselineId,omitempty"`
	Tolerance         float64             `json:"tolerance"`
	Findings          []RegressionFinding `json:"findings"`
}

// Regressions returns only the regression findings.
func (r *BaselineReport) Regressions() []RegressionFinding {
	if r == nil {
		return nil
	}
	var out []RegressionFinding
	for _, f := range r.Findings {
		if f.Kind == FindingRegression {
			out = append(out, f)
		}
	}
	return out
}

// HasRegressions reports whether any metric regressed.
func (r *BaselineReport) HasRegressions() bool {
	return len(r.Regressions()) > 0
}

// absolute slack so that 0.90 - 0.80 is not judged against float noise
const toleranceEpsilon = 1e-9

// CompareBaseline compares current statistics against a baseline.
//
// For each scope present in both, any metric that dropped by more than the
// tolerance (absolute; overrides[scope] wins when set) is a regression.
// Metrics undefined on either side are skipped. Scopes present only in
// current are reported as FindingNewScope. A nil baseline skips the
// comparison and reports BaselineAvailable=false.
func CompareBaseline(current, baseline map[string]ScopeStatistics, tolerance float64, overrides map[string]float64) *BaselineReport {
	report := &BaselineReport{Tolerance: tolerance, Findings: []RegressionFinding{}}
	if baseline == nil {
		return report
	}
	report.BaselineAvailable = true

	scopes := make([]string, 0, len(current))
	for scope := range current {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	for _, scope := range scopes {
		cur := current[scope]
		base, ok := baseline[scope]
		if !ok {
			report.Findings = append(report.Findings, RegressionFinding{Kind: FindingNewScope, Scope: scope})
			continue
		}

		tol := tolerance
		if o, ok := overrides[scope]; ok {
			tol = o
		}

		for _, metric := range MetricNames {
			b := base.Metrics.Metric(metric)
			c := cur.Metrics.Metric(metric)
			if b == nil || c == nil {
				continue
			}
			delta := *c - *b
			if -delta > tol+toleranceEpsilon {
				report.Findings = append(report.Findings, RegressionFinding{
					Kind:      FindingRegression,
					Scope:     scope,
					Metric:    metric,
					Baseline:  b,
					Current:   c,
					Delta:     delta,
					Tolerance: tol,
				})
			}
		}
	}

	return report
}
