package eval

import (
	"iter"

	"github.com/fractal-lba/nlueval/internal/api"
)

// Pair zips expected and actual utterances index-for-index.
//
// Pairing is strictly positional: callers must supply both sequences in the
// same order. Empty input or a length mismatch is a ConfigurationError; no
// partial pairing is attempted. The returned TestCases point into the
// argument slices, so utterance identity is preserved.
func Pair(expected, actual []api.Utterance, label string) ([]TestCase, error) {
	if len(expected) == 0 {
		return nil, configErrorf(nil, "expected utterances are empty")
	}
	if len(actual) == 0 {
		return nil, configErrorf(nil, "actual utterances are empty")
	}
	if len(expected) != len(actual) {
		return nil, configErrorf(nil, "expected has %d utterances but actual has %d", len(expected), len(actual))
	}

	cases := make([]TestCase, len(expected))
	for i := range expected {
		cases[i] = TestCase{
			Index:    i,
			Label:    label,
			Expected: &expected[i],
			Actual:   &actual[i],
		}
	}
	return cases, nil
}

// EntityCases enumerates every entity on one side of every TestCase, each
// paired with the opposite utterance. The sequence is lazy and can be
// ranged over any number of times.
func EntityCases(cases []TestCase, side Side) iter.Seq[EntityTestCase] {
	return func(yield func(EntityTestCase) bool) {
		for i := range cases {
			for ec := range caseEntities(&cases[i], side) {
				if !yield(ec) {
					return
				}
			}
		}
	}
}

// ValueEntityCases restricts the expected-side entity cases to entities
// that carry a resolved entityValue.
func ValueEntityCases(cases []TestCase) iter.Seq[EntityTestCase] {
	return func(yield func(EntityTestCase) bool) {
		for ec := range EntityCases(cases, SideExpected) {
			if ec.Entity.EntityValue == nil {
				continue
			}
			if !yield(ec) {
				return
			}
		}
	}
}

func caseEntities(tc *TestCase, side Side) iter.Seq[EntityTestCase] {
	return func(yield func(EntityTestCase) bool) {
		source := tc.Utterance(side)
		if source == nil {
			return
		}
		for i := range source.Entities {
			ec := EntityTestCase{
				TestCase: tc,
				Source:   side,
				Entity:   &source.Entities[i],
				Other:    tc.Other(side),
				Text:     source.Text,
			}
			if !yield(ec) {
				return
			}
		}
	}
}
