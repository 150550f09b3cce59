package reasoning

import (
	"regexp"
	"strings"

	"github.com/hupe1980/researchgo/internal/textutil"
)

// Complexity is the tier a query's complexity score falls into.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// Analysis is the result of deterministic query analysis.
type Analysis struct {
	Query              string     `json:"query"`
	QueryType          string     `json:"query_type"`
	Complexity         Complexity `json:"complexity"`
	ComplexityScore    int        `json:"complexity_score"`
	KeyConcepts        []string   `json:"key_concepts"`
	RequiredOperations []string   `json:"required_operations"`
	EstimatedSteps     int        `json:"estimated_steps"`
}

// questionPatterns are checked in this fixed order; the first match wins.
var questionPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"what", regexp.MustCompile(`\bwhat\b`)},
	{"when", regexp.MustCompile(`\bwhen\b`)},
	{"where", regexp.MustCompile(`\bwhere\b`)},
	{"who", regexp.MustCompile(`\bwho\b`)},
	{"why", regexp.MustCompile(`\bwhy\b`)},
	{"how", regexp.MustCompile(`\bhow\b`)},
	{"which", regexp.MustCompile(`\bwhich\b`)},
}

// actionCategories map an operation name to the keywords that signal it.
// Order is fixed; it drives both query-type fallback and the order of
// required operations.
var actionCategories = []struct {
	name     string
	keywords []string
}{
	{"compare", []string{"compare", "contrast", "difference", "similarity", "versus", "vs"}},
	{"analyze", []string{"analyze", "examine", "investigate", "break down", "explore"}},
	{"explain", []string{"explain", "why", "how", "reason", "cause", "effect"}},
	{"synthesize", []string{"synthesize", "combine", "integrate", "merge", "summarize"}},
	{"evaluate", []string{"evaluate", "assess", "judge", "critique", "review"}},
	{"predict", []string{"predict", "forecast", "anticipate", "expect", "likely"}},
	{"recommend", []string{"recommend", "suggest", "advise", "propose", "should"}},
}

// conjunctions signal queries that touch multiple aspects.
var conjunctions = []string{"and", "or", "but", "while", "although"}

// Analyze classifies a query, scores its complexity and derives the
// operations it calls for. The analysis is fully deterministic: the same
// query always produces the same result.
func Analyze(query string) Analysis {
	lower := strings.ToLower(query)
	score := complexityScore(lower)

	return Analysis{
		Query:              query,
		QueryType:          queryType(lower),
		Complexity:         tier(score),
		ComplexityScore:    score,
		KeyConcepts:        textutil.KeyConcepts(query),
		RequiredOperations: requiredOperations(lower),
		EstimatedSteps:     estimatedSteps(score, lower),
	}
}

// queryType returns the first matching question word, else the first
// matching action category, else "factual".
func queryType(lower string) string {
	for _, qp := range questionPatterns {
		if qp.pattern.MatchString(lower) {
			return qp.name
		}
	}
	for _, cat := range actionCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.name
			}
		}
	}
	return "factual"
}

// complexityScore sums action-keyword hits, question marks, and
// conjunction occurrences.
func complexityScore(lower string) int {
	score := 0
	for _, cat := range actionCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
	}
	score += strings.Count(lower, "?")
	for _, conj := range conjunctions {
		if strings.Contains(lower, conj) {
			score++
		}
	}
	return score
}

func tier(score int) Complexity {
	switch {
	case score <= 1:
		return Simple
	case score <= 3:
		return Moderate
	default:
		return Complex
	}
}

// requiredOperations lists the matching action categories in fixed order;
// a query matching none is a plain retrieval.
func requiredOperations(lower string) []string {
	var ops []string
	for _, cat := range actionCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				ops = append(ops, cat.name)
				break
			}
		}
	}
	if len(ops) == 0 {
		ops = append(ops, "retrieve")
	}
	return ops
}

func estimatedSteps(score int, lower string) int {
	base := len(requiredOperations(lower))
	switch tier(score) {
	case Simple:
		return max(2, base)
	case Moderate:
		return max(3, base+1)
	default:
		return max(4, base+2)
	}
}
