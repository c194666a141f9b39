package eval

import "github.com/fractal-lba/nlueval/internal/api"

func utterance(text, intent string, entities ...api.Entity) api.Utterance {
	u := api.Utterance{Text: text, Entities: entities}
	if intent != "" {
		u.Intent = api.String(intent)
	}
	return u
}

func entity(entityType string, value, matchText string) api.Entity {
	e := api.Entity{EntityType: entityType}
	if value != "" {
		e.EntityValue = api.StringValuePtr(value)
	}
	if matchText != "" {
		e.MatchText = api.String(matchText)
	}
	return e
}

func singleCase(expected, actual api.Utterance) *TestCase {
	return &TestCase{Index: 0, Expected: &expected, Actual: &actual}
}

func countOutcomes(judgments []Judgment, target Target, group string, outcome OutcomeKind) int {
	n := 0
	for _, j := range judgments {
		if j.Target == target && j.Group == group && j.Outcome == outcome {
			n++
		}
	}
	return n
}
