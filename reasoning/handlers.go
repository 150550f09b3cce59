package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/researchgo/docstore"
	"github.com/hupe1980/researchgo/internal/textutil"
	"github.com/hupe1980/researchgo/metadata"
)

// Output map keys. Dependents read these from the "dep:<id>" references the
// executor threads into their input, never from hardcoded step ids.
const (
	outputKeyError         = "error"
	outputKeyTimeout       = "timed_out"
	outputKeyAnalysis      = "analysis"
	outputKeyRetrievedDocs = "retrieved_documents"
	outputKeyFacts         = "extracted_facts"
	outputKeyDeductions    = "logical_deductions"
	outputKeyKeyPoints     = "key_points"
	outputKeyGaps          = "information_gaps"
	outputKeyAnswer        = "answer"
	outputKeyHypotheses    = "hypotheses"
	outputKeyEvaluation    = "evaluation"
)

// Handler heuristics.
const (
	// snippetLen bounds document content carried between steps.
	snippetLen = 500
	// minFactLen is the shortest sentence considered a candidate fact.
	minFactLen = 20
	// summaryLen bounds the conclusion's answer summary.
	summaryLen = 300

	maxKeyPointDocs       = 3
	maxKeyPointFacts      = 3
	maxKeyPointDeductions = 2
)

// RetrievedDocument is one hit carried from retrieval into later steps.
// Content is truncated to a bounded snippet.
type RetrievedDocument struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata metadata.Metadata `json:"metadata,omitempty"`
	Score    float32           `json:"similarity_score"`
}

// Fact is a candidate factual statement with provenance.
type Fact struct {
	Fact       string  `json:"fact"`
	SourceDoc  string  `json:"source_doc"`
	Confidence float64 `json:"confidence"`
}

// Deduction is a candidate inference derived from two facts.
type Deduction struct {
	Deduction  string    `json:"deduction"`
	BasedOn    [2]string `json:"based_on_facts"`
	Confidence float64   `json:"confidence"`
}

// Handler executes one step type. It returns the step's output map or an
// error; errors are isolated by the executor and never abort the plan.
type Handler func(ctx context.Context, step *Step, input map[string]any) (map[string]any, error)

// depOutput finds the first dependency output containing key and returns
// the value. Lookups go through the declared dependency list, so handlers
// keep working when steps are reordered or reused under different ids.
func depOutput[T any](step *Step, input map[string]any, key string) (T, bool) {
	for _, dep := range step.Dependencies {
		out, ok := input[DepKey(dep)].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := out[key].(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (e *Executor) handleQueryAnalysis(_ context.Context, _ *Step, input map[string]any) (map[string]any, error) {
	query, _ := input["query"].(string)
	analysis := Analyze(query)
	return map[string]any{
		outputKeyAnalysis: analysis,
	}, nil
}

func (e *Executor) handleInformationRetrieval(ctx context.Context, _ *Step, input map[string]any) (map[string]any, error) {
	query, _ := input["query"].(string)

	out := map[string]any{
		"query":               query,
		outputKeyRetrievedDocs: []RetrievedDocument{},
		"retrieval_count":     0,
	}

	if e.store == nil {
		return out, nil
	}

	hits, err := e.store.Search(ctx, query, e.topK, e.threshold)
	if err != nil {
		// A query that cannot be embedded degrades to an empty result;
		// anything else is a real step failure.
		if errors.Is(err, docstore.ErrEmbeddingUnavailable) {
			e.logger.WarnContext(ctx, "retrieval degraded to empty result", "error", err)
			return out, nil
		}
		return nil, err
	}

	docs := make([]RetrievedDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, RetrievedDocument{
			ID:       h.Document.ID,
			Content:  textutil.Truncate(h.Document.Content, snippetLen),
			Metadata: h.Document.Metadata,
			Score:    h.Score,
		})
	}

	out[outputKeyRetrievedDocs] = docs
	out["retrieval_count"] = len(docs)
	return out, nil
}

func (e *Executor) handleFactExtraction(_ context.Context, step *Step, input map[string]any) (map[string]any, error) {
	docs, _ := depOutput[[]RetrievedDocument](step, input, outputKeyRetrievedDocs)

	var facts []Fact
	for _, doc := range docs {
		for _, sentence := range textutil.Sentences(doc.Content) {
			if len(sentence) > minFactLen && looksDeclarative(sentence) {
				facts = append(facts, Fact{
					Fact:       sentence,
					SourceDoc:  doc.ID,
					Confidence: 0.6,
				})
			}
		}
	}

	return map[string]any{
		outputKeyFacts: facts,
		"fact_count":   len(facts),
	}, nil
}

func (e *Executor) handleLogicalDeduction(_ context.Context, step *Step, input map[string]any) (map[string]any, error) {
	facts, _ := depOutput[[]Fact](step, input, outputKeyFacts)

	var deductions []Deduction
	for i := 0; i < len(facts); i++ {
		for j := i + 1; j < len(facts); j++ {
			if text, ok := deduce(facts[i].Fact, facts[j].Fact); ok {
				deductions = append(deductions, Deduction{
					Deduction:  text,
					BasedOn:    [2]string{facts[i].Fact, facts[j].Fact},
					Confidence: 0.5,
				})
			}
		}
	}

	return map[string]any{
		outputKeyDeductions: deductions,
		"deduction_count":   len(deductions),
	}, nil
}

func (e *Executor) handleSynthesis(_ context.Context, step *Step, input map[string]any) (map[string]any, error) {
	docs, _ := depOutput[[]RetrievedDocument](step, input, outputKeyRetrievedDocs)
	facts, _ := depOutput[[]Fact](step, input, outputKeyFacts)
	deductions, _ := depOutput[[]Deduction](step, input, outputKeyDeductions)

	keyPoints := extractKeyPoints(docs, facts, deductions)
	gaps := informationGaps(docs, facts)

	var b strings.Builder
	b.WriteString("Based on the analysis and synthesis of retrieved information:\n")
	if len(keyPoints) > 0 {
		b.WriteString("\nKey Points:\n")
		for _, p := range keyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if len(gaps) > 0 {
		b.WriteString("\nInformation Gaps:\n")
		for _, g := range gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	return map[string]any{
		"retrieved_information_count": len(docs),
		"extracted_facts_count":       len(facts),
		"logical_deductions_count":    len(deductions),
		outputKeyKeyPoints:            keyPoints,
		outputKeyGaps:                 gaps,
		outputKeyAnswer:               strings.TrimRight(b.String(), "\n"),
	}, nil
}

func (e *Executor) handleConclusion(_ context.Context, step *Step, input map[string]any) (map[string]any, error) {
	docs, _ := depOutput[[]RetrievedDocument](step, input, outputKeyRetrievedDocs)

	summary := answerSummary(docs)
	assessment := confidenceAssessment(docs)
	limitations := answerLimitations(docs)

	answer := fmt.Sprintf("%s\n\nConfidence: %s", summary, assessment)
	if len(limitations) > 0 {
		answer += "\n\nLimitations: " + strings.Join(limitations, ", ")
	}

	return map[string]any{
		"answer_summary":        summary,
		"confidence_assessment": assessment,
		"limitations":           limitations,
		outputKeyAnswer:         answer,
	}, nil
}

// handleHypothesisGeneration is an extension point; the baseline returns an
// explicitly-typed empty result.
func (e *Executor) handleHypothesisGeneration(_ context.Context, _ *Step, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		outputKeyHypotheses: []string{},
	}, nil
}

// handleEvidenceEvaluation is an extension point; the baseline returns an
// explicitly-typed empty result.
func (e *Executor) handleEvidenceEvaluation(_ context.Context, _ *Step, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		outputKeyEvaluation: map[string]any{},
	}, nil
}

// looksDeclarative applies the fact heuristic: the sentence carries a
// copula or auxiliary verb and no question indicator.
func looksDeclarative(sentence string) bool {
	lower := strings.ToLower(sentence)

	factIndicators := []string{"is", "are", "was", "were", "has", "have", "had", "can", "could", "will", "would"}
	questionIndicators := []string{"?", "who", "what", "when", "where", "why", "how"}

	hasFact := false
	for _, ind := range factIndicators {
		if strings.Contains(lower, ind) {
			hasFact = true
			break
		}
	}
	for _, ind := range questionIndicators {
		if strings.Contains(lower, ind) {
			return false
		}
	}
	return hasFact
}

// deduce applies the fixed pairwise rule set.
func deduce(fact1, fact2 string) (string, bool) {
	l1, l2 := strings.ToLower(fact1), strings.ToLower(fact2)

	if strings.Contains(l1, "increase") && strings.Contains(l2, "decrease") {
		return fmt.Sprintf("There may be an inverse relationship between the concepts in: %q and %q", fact1, fact2), true
	}
	if strings.Contains(l1, "similar") && strings.Contains(l2, "similar") {
		return fmt.Sprintf("Both facts indicate similarity: %q and %q", fact1, fact2), true
	}
	return "", false
}

func extractKeyPoints(docs []RetrievedDocument, facts []Fact, deductions []Deduction) []string {
	var points []string
	for i, doc := range docs {
		if i >= maxKeyPointDocs {
			break
		}
		points = append(points, fmt.Sprintf("From document %s: %s", doc.ID, textutil.Truncate(doc.Content, 100)))
	}
	for i, fact := range facts {
		if i >= maxKeyPointFacts {
			break
		}
		points = append(points, "Key fact: "+fact.Fact)
	}
	for i, d := range deductions {
		if i >= maxKeyPointDeductions {
			break
		}
		points = append(points, "Deduction: "+d.Deduction)
	}
	return points
}

func informationGaps(docs []RetrievedDocument, facts []Fact) []string {
	var gaps []string
	if len(docs) == 0 {
		gaps = append(gaps, "No relevant documents found")
	}
	if len(facts) < 3 {
		gaps = append(gaps, "Limited factual information extracted")
	}
	return gaps
}

func answerSummary(docs []RetrievedDocument) string {
	if len(docs) == 0 {
		return "No relevant information was found to answer the query."
	}
	return "Based on the most relevant document found: " + textutil.Truncate(docs[0].Content, summaryLen)
}

func confidenceAssessment(docs []RetrievedDocument) string {
	switch {
	case len(docs) == 0:
		return "Very Low"
	case len(docs) == 1:
		return "Low"
	case len(docs) < 5:
		return "Medium"
	default:
		return "High"
	}
}

func answerLimitations(docs []RetrievedDocument) []string {
	var limitations []string
	if len(docs) < 3 {
		limitations = append(limitations, "Limited source documents")
	}
	if len(docs) == 0 {
		limitations = append(limitations, "No relevant information found")
	}
	return limitations
}
