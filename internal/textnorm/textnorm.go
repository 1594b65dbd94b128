// Package textnorm canonicalizes free text (typed or transcribed) before it
// is compared against region names.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lower returns the Unicode lower-case form of s. A Caser keeps state, so a
// fresh one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Normalize lower-cases s and removes whitespace and hyphens.
func Normalize(s string) string {
	s = lower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeStrict lower-cases s and keeps only Latin letters a-z, Cyrillic
// letters, digits, whitespace and hyphens.
func NormalizeStrict(s string) string {
	s = lower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-':
		return true
	case unicode.IsSpace(r):
		return true
	case unicode.Is(unicode.Cyrillic, r) && unicode.IsLetter(r):
		return true
	}
	return false
}

// Tokenize applies NormalizeStrict and splits the result on whitespace runs.
// Empty tokens never appear in the result.
func Tokenize(s string) []string {
	return strings.Fields(NormalizeStrict(s))
}
