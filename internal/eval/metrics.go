package eval

import (
	"math"
	"sort"
)

// Scope names. Entity types never appear bare: each one is namespaced
// under ScopeEntity so that a type called "overall" or "text" cannot land in
// a reserved scope.
const (
	ScopeOverall     = "overall"
	ScopeEntity      = "entity"
	ScopeIntent      = "intent"
	ScopeText        = "text"
	ScopeEntityValue = "entityValue"

	scopeSeparator = ":"
)

// EntityScope is the scope for one entity type.
func EntityScope(entityType string) string {
	return ScopeEntity + scopeSeparator + entityType
}

// IntentScope is the scope for one intent label.
func IntentScope(name string) string {
	return ScopeIntent + scopeSeparator + name
}

// EntityValueScope is the value-only scope for one entity type.
func EntityValueScope(entityType string) string {
	return ScopeEntityValue + scopeSeparator + entityType
}

// ConfusionMatrix counts outcomes for one evaluation scope.
type ConfusionMatrix struct {
	TruePositives  int `json:"truePositive"`
	FalsePositives int `json:"falsePositive"`
	TrueNegatives  int `json:"trueNegative"`
	FalseNegatives int `json:"falseNegative"`
}

// Add increments the counter for outcome.
func (m *ConfusionMatrix) Add(outcome OutcomeKind) {
	switch outcome {
	case TruePositive:
		m.TruePositives++
	case FalsePositive:
		m.FalsePositives++
	case TrueNegative:
		m.TrueNegatives++
	case FalseNegative:
		m.FalseNegatives++
	}
}

// Merge adds other's counts into m.
func (m *ConfusionMatrix) Merge(other ConfusionMatrix) {
	m.TruePositives += other.TruePositives
	m.FalsePositives += other.FalsePositives
	m.TrueNegatives += other.TrueNegatives
	m.FalseNegatives += other.FalseNegatives
}

// Total returns the number of classified items.
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// Precision = TP / (TP + FP); nil when undefined.
func (m ConfusionMatrix) Precision() *float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
}

// Recall = TP / (TP + FN); nil when undefined.
func (m ConfusionMatrix) Recall() *float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
}

// F1 = 2TP / (2TP + FP + FN); nil when undefined.
func (m ConfusionMatrix) F1() *float64 {
	return ratio(2*m.TruePositives, 2*m.TruePositives+m.FalsePositives+m.FalseNegatives)
}

// Accuracy = (TP + TN) / (TP + FN + FP + TN); nil when undefined.
func (m ConfusionMatrix) Accuracy() *float64 {
	return ratio(m.TruePositives+m.TrueNegatives, m.Total())
}

// Snapshot derives the reported metrics, rounded to 2 decimal places.
func (m ConfusionMatrix) Snapshot() Snapshot {
	return Snapshot{
		Precision: round2(m.Precision()),
		Recall:    round2(m.Recall()),
		F1:        round2(m.F1()),
		Accuracy:  round2(m.Accuracy()),
	}
}

// Snapshot holds derived metrics. A nil field means "no data": the
// denominator was zero. It serializes as JSON null.
type Snapshot struct {
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1        *float64 `json:"f1"`
	Accuracy  *float64 `json:"accuracy"`
}

// Metric names used in findings and reports.
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
	MetricAccuracy  = "accuracy"
)

// MetricNames lists the snapshot metrics in reporting order.
var MetricNames = []string{MetricPrecision, MetricRecall, MetricF1, MetricAccuracy}

// Metric returns the named metric.
func (s Snapshot) Metric(name string) *float64 {
	switch name {
	case MetricPrecision:
		return s.Precision
	case MetricRecall:
		return s.Recall
	case MetricF1:
		return s.F1
	case MetricAccuracy:
		return s.Accuracy
	}
	return nil
}

// ScopeStatistics is the statistics.json entry for one scope.
type ScopeStatistics struct {
	Counts  ConfusionMatrix `json:"counts"`
	Metrics Snapshot        `json:"metrics"`
}

// Statistics keeps one ConfusionMatrix per scope.
//
// A Statistics value is not safe for concurrent use. Concurrent
// classification accumulates into one Statistics per shard and merges them
// afterwards.
type Statistics struct {
	matrices map[string]*ConfusionMatrix
}

// NewStatistics returns an empty accumulator.
func NewStatistics() *Statistics {
	return &Statistics{matrices: make(map[string]*ConfusionMatrix)}
}

// Accumulate increments exactly one counter in the scope's matrix.
func (s *Statistics) Accumulate(scope string, outcome OutcomeKind) {
	m, ok := s.matrices[scope]
	if !ok {
		m = &ConfusionMatrix{}
		s.matrices[scope] = m
	}
	m.Add(outcome)
}

// Record accumulates a judgment into every scope it belongs to.
func (s *Statistics) Record(j Judgment) {
	for _, scope := range judgmentScopes(j) {
		s.Accumulate(scope, j.Outcome)
	}
}

// RecordResult accumulates all judgments of a classified TestCase.
func (s *Statistics) RecordResult(r Result) {
	for _, j := range r.Judgments {
		s.Record(j)
	}
}

// Merge adds every matrix of other into s.
func (s *Statistics) Merge(other *Statistics) {
	if other == nil {
		return
	}
	for scope, m := range other.matrices {
		dst, ok := s.matrices[scope]
		if !ok {
			dst = &ConfusionMatrix{}
			s.matrices[scope] = dst
		}
		dst.Merge(*m)
	}
}

// Matrix returns a copy of the scope's counts (zero if never touched).
func (s *Statistics) Matrix(scope string) ConfusionMatrix {
	if m, ok := s.matrices[scope]; ok {
		return *m
	}
	return ConfusionMatrix{}
}

// Scopes returns every scope name in sorted order.
func (s *Statistics) Scopes() []string {
	scopes := make([]string, 0, len(s.matrices))
	for scope := range s.matrices {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Results derives the statistics.json mapping.
func (s *Statistics) Results() map[string]ScopeStatistics {
	out := make(map[string]ScopeStatistics, len(s.matrices))
	for scope, m := range s.matrices {
		out[scope] = ScopeStatistics{Counts: *m, Metrics: m.Snapshot()}
	}
	return out
}

func judgmentScopes(j Judgment) []string {
	switch j.Target {
	case TargetEntity:
		if j.Group == "" {
			return []string{ScopeOverall}
		}
		return []string{ScopeOverall, EntityScope(j.Group)}
	case TargetEntityValue:
		return []string{ScopeEntityValue, EntityValueScope(j.Group)}
	case TargetIntent:
		if j.Group == "" {
			return []string{ScopeIntent}
		}
		return []string{ScopeIntent, IntentScope(j.Group)}
	case TargetText:
		return []string{ScopeText}
	}
	return nil
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
