// Package text canonicalizes utterance strings for equality comparison.
//
// Expected and actual transcriptions (speech-to-text in particular) often
// differ only in punctuation, spacing and casing. Normalization removes those
// differences before two strings are compared.
package text

import (
	"strings"
	"unicode"
)

// NormalizeString collapses every run of whitespace to a single space,
// removes runes that are neither word characters nor whitespace, and trims
// the result.
//
// Punctuation removal never leaves a double space behind ("a - b" becomes
// "a b"), so normalizing a normalized string is a no-op.
//
// Example:
//
//	NormalizeString("  Book me a flight,   to Cairo! ") // "Book me a flight to Cairo"
func NormalizeString(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case isWordRune(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			// dropped; a pending separator survives
		}
	}

	return b.String()
}

// Normalize is the nil-preserving form of NormalizeString.
func Normalize(s *string) *string {
	if s == nil {
		return nil
	}
	n := NormalizeString(*s)
	return &n
}

// Equal reports whether a and b are equal after normalization, ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(NormalizeString(a), NormalizeString(b))
}

// Blank reports whether s normalizes to the empty string, e.g. "?!".
func Blank(s string) bool {
	return NormalizeString(s) == ""
}

// EqualPtr is Equal for optional strings. Absent or blank values never
// compare equal, not even to each other.
func EqualPtr(a, b *string) bool {
	if a == nil || b == nil || Blank(*a) {
		return false
	}
	return Equal(*a, *b)
}

// isWordRune matches the \w class: letters, digits, marks and connector
// punctuation such as '_'.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsDigit(r) ||
		unicode.IsMark(r) ||
		unicode.Is(unicode.Pc, r)
}
