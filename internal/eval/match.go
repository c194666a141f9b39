package eval

import (
	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/pkg/text"
)

// IsMatch reports whether an expected and an actual entity refer to the
// same extracted entity.
//
// Types must be equal. Then any one of four comparisons is enough:
//
//	expected.matchText   ≈ actual.matchText
//	expected.matchText   ≈ actual.entityValue
//	expected.entityValue ≈ actual.entityValue
//	expected.entityValue ≈ actual.matchText
//
// Providers fill the span or the resolved value inconsistently, so a single
// field comparison would miss legitimate matches. String operands compare
// with text.Equal; a structured entityValue only ever equals another
// entityValue, structurally. Absent fields and strings that normalize to
// nothing never match.
func IsMatch(expected, actual *api.Entity) bool {
	if expected == nil || actual == nil {
		return false
	}
	if expected.EntityType != actual.EntityType {
		return false
	}

	if text.EqualPtr(expected.MatchText, actual.MatchText) {
		return true
	}
	if textMatchesValue(expected.MatchText, actual.EntityValue) {
		return true
	}
	if valuesMatch(expected.EntityValue, actual.EntityValue) {
		return true
	}
	return textMatchesValue(actual.MatchText, expected.EntityValue)
}

// IsValueMatch compares resolved values only, exactly. It isolates value
// resolution from span extraction.
func IsValueMatch(expected, actual *api.Entity) bool {
	if expected == nil || actual == nil {
		return false
	}
	if expected.EntityType != actual.EntityType {
		return false
	}
	if expected.EntityValue == nil || actual.EntityValue == nil {
		return false
	}
	return expected.EntityValue.Equal(*actual.EntityValue)
}

// FindMatch returns the first entity in candidates that matches e, or nil.
func FindMatch(e *api.Entity, candidates []api.Entity, match func(expected, actual *api.Entity) bool) *api.Entity {
	for i := range candidates {
		if match(e, &candidates[i]) {
			return &candidates[i]
		}
	}
	return nil
}

func valuesMatch(a, b *api.Value) bool {
	if a == nil || b == nil {
		return false
	}
	as, aok := a.AsString()
	bs, bok := b.AsString()
	if aok && bok {
		return !text.Blank(as) && text.Equal(as, bs)
	}
	return a.Equal(*b)
}

func textMatchesValue(s *string, v *api.Value) bool {
	if s == nil || v == nil {
		return false
	}
	vs, ok := v.AsString()
	if !ok {
		return false
	}
	return !text.Blank(*s) && text.Equal(*s, vs)
}
