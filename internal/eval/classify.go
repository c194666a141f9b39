package eval

import (
	"fmt"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/pkg/text"
)

// ClassifyOptions tunes classification.
type ClassifyOptions struct {
	// UnitTest scores only explicit expectations: false positives and true
	// negatives are dropped.
	UnitTest bool
}

// Result holds every judgment for one TestCase.
type Result struct {
	IntentMatch      bool
	TextMatch        bool
	EntitiesMatch    bool
	EntityCountMatch bool
	Judgments        []Judgment
	Warnings         []Warning
}

// Record converts the result into its metadata.json form.
func (r Result) Record(tc *TestCase) CaseRecord {
	return CaseRecord{
		Index:            tc.Index,
		TestLabel:        tc.Label,
		Expected:         tc.Expected,
		Actual:           tc.Actual,
		IntentMatch:      r.IntentMatch,
		TextMatch:        r.TextMatch,
		EntitiesMatch:    r.EntitiesMatch,
		EntityCountMatch: r.EntityCountMatch,
		Judgments:        r.Judgments,
		Warnings:         r.Warnings,
	}
}

// Classify runs the intent, text and entity passes over one TestCase. It is
// a pure function of its input.
func Classify(tc *TestCase, opts ClassifyOptions) Result {
	var r Result

	r.IntentMatch = api.IntentName(tc.Expected.Intent) == api.IntentName(tc.Actual.Intent)
	r.TextMatch = text.Equal(tc.Expected.Text, tc.Actual.Text)
	r.EntityCountMatch = len(tc.Expected.Entities) == len(tc.Actual.Entities)

	r.Judgments = append(r.Judgments, classifyIntent(tc)...)
	r.Judgments = append(r.Judgments, classifyText(tc)...)

	entityJudgments, warnings := classifyEntities(tc)
	r.Judgments = append(r.Judgments, entityJudgments...)
	r.Warnings = warnings

	r.Judgments = append(r.Judgments, classifyEntityValues(tc)...)

	if opts.UnitTest {
		r.Judgments = dropUnscored(r.Judgments)
	}

	r.EntitiesMatch = true
	for _, j := range r.Judgments {
		if j.Target == TargetEntity && (j.Outcome == FalseNegative || j.Outcome == FalsePositive) {
			r.EntitiesMatch = false
			break
		}
	}

	return r
}

// classifyIntent tags the intent. A mismatch between two real intents is a
// miss for the expected one and a false alarm for the actual one.
func classifyIntent(tc *TestCase) []Judgment {
	expected := api.IntentName(tc.Expected.Intent)
	actual := api.IntentName(tc.Actual.Intent)

	switch {
	case expected == "" && actual == "":
		return []Judgment{{Target: TargetIntent, Outcome: TrueNegative}}
	case expected == "":
		return []Judgment{{Target: TargetIntent, Group: actual, Outcome: FalsePositive, Value: actual}}
	case actual == "":
		return []Judgment{{Target: TargetIntent, Group: expected, Outcome: FalseNegative, Value: expected}}
	case expected == actual:
		return []Judgment{{Target: TargetIntent, Group: expected, Outcome: TruePositive, Value: expected}}
	default:
		return []Judgment{
			{Target: TargetIntent, Group: expected, Outcome: FalseNegative, Value: expected},
			{Target: TargetIntent, Group: actual, Outcome: FalsePositive, Value: actual},
		}
	}
}

func classifyText(tc *TestCase) []Judgment {
	expected := text.NormalizeString(tc.Expected.Text)
	actual := text.NormalizeString(tc.Actual.Text)

	var outcome OutcomeKind
	switch {
	case expected == "" && actual == "":
		outcome = TrueNegative
	case expected == "":
		outcome = FalsePositive
	case text.Equal(expected, actual):
		outcome = TruePositive
	default:
		outcome = FalseNegative
	}
	return []Judgment{{Target: TargetText, Outcome: outcome, Value: tc.Actual.Text}}
}

// classifyEntities judges every expected entity (hit or miss) and every
// actual entity nothing expected (false alarm). The match search for an
// expected entity spans the whole actual list, but IsMatch rejects
// candidates of another type, so a mislabeled entity counts as a miss for
// its expected type and a false alarm for the type the provider chose.
func classifyEntities(tc *TestCase) ([]Judgment, []Warning) {
	if !tc.Expected.HasEntities() && !tc.Actual.HasEntities() {
		return []Judgment{{Target: TargetEntity, Outcome: TrueNegative}}, nil
	}

	var judgments []Judgment
	var warnings []Warning

	for ec := range caseEntities(tc, SideExpected) {
		e := ec.Entity
		if !e.IsComparable() {
			warnings = append(warnings, Warning{
				Kind:       WarningClassificationAmbiguity,
				Index:      tc.Index,
				EntityType: e.EntityType,
				Message:    fmt.Sprintf("expected %q entity in %q has neither entityValue nor matchText", e.EntityType, ec.Text),
			})
			judgments = append(judgments, Judgment{Target: TargetEntity, Group: e.EntityType, Outcome: FalseNegative, Entity: e})
			continue
		}

		if m := FindMatch(e, ec.Other.Entities, IsMatch); m != nil {
			judgments = append(judgments, Judgment{Target: TargetEntity, Group: e.EntityType, Outcome: TruePositive, Entity: e, Matched: m})
		} else {
			judgments = append(judgments, Judgment{Target: TargetEntity, Group: e.EntityType, Outcome: FalseNegative, Entity: e})
		}
	}

	for ec := range caseEntities(tc, SideActual) {
		a := ec.Entity
		if hasExpectedMatch(a, ec.Other.Entities) {
			continue
		}
		judgments = append(judgments, Judgment{Target: TargetEntity, Group: a.EntityType, Outcome: FalsePositive, Entity: a})
	}

	return judgments, warnings
}

// classifyEntityValues repeats the expected-side check for entities with a
// resolved value, comparing values only.
func classifyEntityValues(tc *TestCase) []Judgment {
	var judgments []Judgment
	for ec := range caseEntities(tc, SideExpected) {
		e := ec.Entity
		if e.EntityValue == nil {
			continue
		}
		if m := FindMatch(e, ec.Other.Entities, IsValueMatch); m != nil {
			judgments = append(judgments, Judgment{Target: TargetEntityValue, Group: e.EntityType, Outcome: TruePositive, Entity: e, Matched: m})
		} else {
			judgments = append(judgments, Judgment{Target: TargetEntityValue, Group: e.EntityType, Outcome: FalseNegative, Entity: e})
		}
	}
	return judgments
}

func hasExpectedMatch(actual *api.Entity, expected []api.Entity) bool {
	for i := range expected {
		if IsMatch(&expected[i], actual) {
			return true
		}
	}
	return false
}

func dropUnscored(judgments []Judgment) []Judgment {
	kept := judgments[:0:0]
	for _, j := range judgments {
		if j.Outcome == FalsePositive || j.Outcome == TrueNegative {
			continue
		}
		kept = append(kept, j)
	}
	return kept
}
