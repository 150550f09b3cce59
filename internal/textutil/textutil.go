// Package textutil provides the small text-processing primitives shared by
// the embedding and reasoning packages: tokenization, stopword filtering and
// sentence splitting.
package textutil

import (
	"regexp"
	"strings"
)

var (
	tokenPattern    = regexp.MustCompile(`\b\w+\b`)
	sentencePattern = regexp.MustCompile(`[.!?]+`)
)

// stopwords are common English function words excluded from key concepts.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

// Tokenize lowercases text and splits it into word tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// IsStopword reports whether the (lowercased) token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// KeyConcepts returns the distinct non-stopword tokens of text that are
// longer than two characters, in first-occurrence order.
func KeyConcepts(text string) []string {
	seen := make(map[string]struct{})
	var concepts []string

	for _, tok := range Tokenize(text) {
		if len(tok) <= 2 || IsStopword(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		concepts = append(concepts, tok)
	}

	return concepts
}

// Sentences splits text on terminal punctuation and returns the trimmed,
// non-empty fragments.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Truncate returns s cut to at most n bytes with an ellipsis appended when
// truncation occurred.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
