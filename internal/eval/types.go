package eval

import (
	"encoding/json"
	"fmt"

	"github.com/fractal-lba/nlueval/internal/api"
)

// OutcomeKind is the confusion-matrix cell a judgment falls into.
// "Positive" means something (an intent, an entity, a transcription) was
// expected.
type OutcomeKind int

const (
	TruePositive OutcomeKind = iota
	FalsePositive
	TrueNegative
	FalseNegative
)

var outcomeNames = map[OutcomeKind]string{
	TruePositive:  "truePositive",
	FalsePositive: "falsePositive",
	TrueNegative:  "trueNegative",
	FalseNegative: "falseNegative",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

func (k OutcomeKind) MarshalJSON() ([]byte, error) {
	name, ok := outcomeNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown outcome kind %d", int(k))
	}
	return json.Marshal(name)
}

func (k *OutcomeKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range outcomeNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", name)
}

// Target names what a judgment is about.
type Target string

const (
	TargetIntent      Target = "intent"
	TargetText        Target = "text"
	TargetEntity      Target = "entity"
	TargetEntityValue Target = "entityValue"
)

// Side selects one half of a TestCase.
type Side int

const (
	SideExpected Side = iota
	SideActual
)

func (s Side) String() string {
	if s == SideActual {
		return "actual"
	}
	return "expected"
}

// TestCase pairs one expected utterance with the actual utterance produced
// for it. Expected and Actual point into the caller's slices.
type TestCase struct {
	Index    int
	Label    string // Display-only grouping, e.g. "text" or "speech"
	Expected *api.Utterance
	Actual   *api.Utterance
}

// Other returns the utterance opposite to side.
func (tc *TestCase) Other(side Side) *api.Utterance {
	if side == SideExpected {
		return tc.Actual
	}
	return tc.Expected
}

// Utterance returns the utterance on side.
func (tc *TestCase) Utterance(side Side) *api.Utterance {
	if side == SideExpected {
		return tc.Expected
	}
	return tc.Actual
}

// EntityTestCase is one entity instance from one side of a TestCase, with
// the opposite utterance as the place to look for its match.
type EntityTestCase struct {
	TestCase *TestCase
	Source   Side
	Entity   *api.Entity
	Other    *api.Utterance
	Text     string // Source utterance text, for diagnostics
}

// Judgment is one classified element of a TestCase.
type Judgment struct {
	Target  Target      `json:"target"`
	Group   string      `json:"group,omitempty"` // Intent name or entity type
	Outcome OutcomeKind `json:"outcome"`
	Entity  *api.Entity `json:"entity,omitempty"`
	Matched *api.Entity `json:"matched,omitempty"`
	Value   string      `json:"value,omitempty"`
}

// CaseRecord is the metadata.json entry for one TestCase.
type CaseRecord struct {
	Index            int            `json:"index"`
	TestLabel        string         `json:"testLabel,omitempty"`
	Expected         *api.Utterance `json:"expected"`
	Actual           *api.Utterance `json:"actual"`
	IntentMatch      bool           `json:"intentMatch"`
	TextMatch        bool           `json:"textMatch"`
	EntitiesMatch    bool           `json:"entitiesMatch"`
	EntityCountMatch bool           `json:"entityCountMatch"`
	Judgments        []Judgment     `json:"judgments"`
	Warnings         []Warning      `json:"warnings,omitempty"`
}
