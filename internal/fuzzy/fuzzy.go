// Package fuzzy scores noisy query tokens against candidate labels and picks
// the best candidate.
//
// Scoring has two tiers. The inclusion rule gives a perfect 1.0 when either
// normalized string contains the other. Otherwise the positional similarity
// counts runes that are equal at equal indices and divides by the longer
// length, so shared prefixes score higher than shared letters in a different
// order. This is not an edit distance and it is not symmetric in general.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/stwalsh4118/subsoil/internal/textnorm"
)

// DefaultThreshold is the minimum positional score a candidate needs to win
// without an inclusion match.
const DefaultThreshold = 0.4

// Score compares a and b after textnorm.Normalize. The result is in [0, 1].
func Score(a, b string) float64 {
	return scoreNormalized(textnorm.Normalize(a), textnorm.Normalize(b))
}

func scoreNormalized(a, b string) float64 {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}
	return positional(a, b)
}

// positional counts runes equal at the same index over the longer length.
// Callers guarantee at least one side is non-empty (inclusion catches "").
func positional(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}

	shortest := len(ra)
	if len(rb) < shortest {
		shortest = len(rb)
	}
	matches := 0
	for i := 0; i < shortest; i++ {
		if ra[i] == rb[i] {
			matches++
		}
	}
	return float64(matches) / float64(longest)
}

// Match is the outcome of BestMatch.
type Match[T any] struct {
	Candidate T
	Index     int
	Score     float64
	Token     string
}

// Inclusion reports whether the match came from the inclusion rule.
func (m Match[T]) Inclusion() bool {
	return m.Score == 1
}

// Option configures BestMatch.
type Option func(*options)

type options struct {
	threshold   float64
	minTokenLen int
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(o *options) {
		o.threshold = threshold
	}
}

// WithMinTokenLength ignores tokens with fewer runes than n (after
// normalization). Short tokens otherwise match many names by inclusion.
// Zero disables the guard.
func WithMinTokenLength(n int) Option {
	return func(o *options) {
		o.minTokenLen = n
	}
}

// BestMatch scores every token against every candidate label, in candidate
// order. An inclusion match wins immediately. Otherwise a candidate becomes
// the best when its score beats the running best and reaches the threshold;
// equal scores keep the earlier candidate. ok is false when nothing qualifies.
//
// Tokens and labels that normalize to the empty string are skipped, since
// the empty string is contained in every label.
func BestMatch[T any](tokens []string, candidates []T, label func(T) string, opts ...Option) (Match[T], bool) {
	o := options{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	normTokens := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		n := textnorm.Normalize(tok)
		if n == "" || utf8.RuneCountInString(n) < o.minTokenLen {
			continue
		}
		normTokens = append(normTokens, n)
	}

	var best Match[T]
	found := false
	for i, c := range candidates {
		name := textnorm.Normalize(label(c))
		if name == "" {
			continue
		}
		for _, tok := range normTokens {
			s := scoreNormalized(tok, name)
			if s == 1 {
				return Match[T]{Candidate: c, Index: i, Score: 1, Token: tok}, true
			}
			if s > best.Score && s >= o.threshold {
				best = Match[T]{Candidate: c, Index: i, Score: s, Token: tok}
				found = true
			}
		}
	}
	return best, found
}
