package api

import (
	"strings"

	"github.com/fractal-lba/nlueval/pkg/text"
)

// NoneIntent is the label providers use for "no intent recognized".
const NoneIntent = "None"

// Utterance is a single natural-language input with its resolved intent and
// entities. It is produced by a labeling step (expected) or by an NLU
// provider (actual) and is never mutated after construction.
type Utterance struct {
	Text       string   `json:"text"`
	Intent     *string  `json:"intent"`
	Entities   []Entity `json:"entities"`
	SpeechFile string   `json:"speechFile,omitempty"` // Recording id for speech-mode tests
}

// Entity is a typed span or value extracted from an utterance.
//
// Providers populate either the literal span (MatchText/MatchIndex), the
// resolved value (EntityValue), or both. Every field except EntityType is
// optional.
type Entity struct {
	EntityType  string  `json:"entityType"`
	EntityValue *Value  `json:"entityValue,omitempty"`
	MatchText   *string `json:"matchText,omitempty"`
	MatchIndex  *int    `json:"matchIndex,omitempty"`
	Length      *int    `json:"length,omitempty"`
}

// HasIntent reports whether the utterance carries a real intent label.
// A missing intent, an empty string and "None" all mean "no intent".
func (u *Utterance) HasIntent() bool {
	return IntentName(u.Intent) != ""
}

// HasEntities reports whether the utterance carries at least one entity.
// A nil and an empty entity list are the same label: "no entities".
func (u *Utterance) HasEntities() bool {
	return len(u.Entities) > 0
}

// IntentName returns the intent label, or "" when the intent is absent or None.
func IntentName(intent *string) string {
	if intent == nil {
		return ""
	}
	name := strings.TrimSpace(*intent)
	if strings.EqualFold(name, NoneIntent) {
		return ""
	}
	return name
}

// IsComparable reports whether the entity carries a field the matcher can
// use. Entities without an entityValue and without a matchText can never
// match anything, and neither can strings that normalize to nothing.
func (e *Entity) IsComparable() bool {
	if e.MatchText != nil && !text.Blank(*e.MatchText) {
		return true
	}
	if e.EntityValue == nil {
		return false
	}
	s, ok := e.EntityValue.AsString()
	return !ok || !text.Blank(s)
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Int returns a pointer to i.
func Int(i int) *int {
	return &i
}
