// Package reasoning builds and executes dependency-ordered plans of typed
// reasoning steps over a document store.
//
// A query is analyzed into a complexity tier which selects a fixed chain of
// steps; the resulting plan is validated as a DAG and linearized with a
// deterministic topological sort. The executor dispatches each step to a
// handler from a closed table, threads dependency outputs into later steps'
// inputs under generic keys, isolates per-step failures and aggregates a
// plan-level confidence. Once execution starts the plan always completes;
// a step failure or an exhausted time budget degrades the answer, never
// aborts it.
package reasoning

import "fmt"

// StepType identifies the kind of work a reasoning step performs.
// The executor's handler table is exhaustive over these values.
type StepType string

const (
	QueryAnalysis        StepType = "query_analysis"
	InformationRetrieval StepType = "information_retrieval"
	FactExtraction       StepType = "fact_extraction"
	LogicalDeduction     StepType = "logical_deduction"
	HypothesisGeneration StepType = "hypothesis_generation"
	EvidenceEvaluation   StepType = "evidence_evaluation"
	Synthesis            StepType = "synthesis"
	Conclusion           StepType = "conclusion"
)

// StepTypes lists every step type.
var StepTypes = []StepType{
	QueryAnalysis,
	InformationRetrieval,
	FactExtraction,
	LogicalDeduction,
	HypothesisGeneration,
	EvidenceEvaluation,
	Synthesis,
	Conclusion,
}

// DefaultConfidence returns the a-priori confidence assigned to a step of
// this type at construction. Execution may lower it to 0 on failure.
func (t StepType) DefaultConfidence() float64 {
	switch t {
	case QueryAnalysis:
		return 0.9
	case InformationRetrieval:
		return 0.8
	case FactExtraction:
		return 0.7
	case LogicalDeduction:
		return 0.6
	default:
		return 0.5
	}
}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case QueryAnalysis, InformationRetrieval, FactExtraction, LogicalDeduction,
		HypothesisGeneration, EvidenceEvaluation, Synthesis, Conclusion:
		return true
	}
	return false
}

// Step is one unit of reasoning work within a plan.
//
// Input holds the statically configured input; the executor extends it with
// one "dep:<id>" entry per declared dependency carrying that dependency's
// complete output. Output and Confidence are written by the executor.
type Step struct {
	ID           string         `json:"step_id"`
	Type         StepType       `json:"step_type"`
	Description  string         `json:"description"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Confidence   float64        `json:"confidence"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// DepKey returns the input key under which a dependency's output is
// threaded into dependent steps.
func DepKey(stepID string) string {
	return "dep:" + stepID
}

// NewStep creates a step with the type's default confidence.
func NewStep(id string, t StepType, description string, deps ...string) *Step {
	return &Step{
		ID:           id,
		Type:         t,
		Description:  description,
		Input:        map[string]any{},
		Confidence:   t.DefaultConfidence(),
		Dependencies: deps,
	}
}

// Summary is the caller-facing digest of one executed step, sufficient for
// report rendering without reaching into internal step state.
type Summary struct {
	ID           string   `json:"step_id"`
	Type         StepType `json:"step_type"`
	Description  string   `json:"description"`
	Confidence   float64  `json:"confidence"`
	Dependencies []string `json:"dependencies,omitempty"`
	Output       string   `json:"output_summary"`
}

// summarize renders a short, human-readable digest of a step's output.
func (s *Step) summarize() string {
	if s.Output == nil {
		return "not executed"
	}
	if errMsg, ok := s.Output[outputKeyError].(string); ok {
		if timedOut, _ := s.Output[outputKeyTimeout].(bool); timedOut {
			return "timed out: " + errMsg
		}
		return "failed: " + errMsg
	}

	switch s.Type {
	case QueryAnalysis:
		if a, ok := s.Output[outputKeyAnalysis].(Analysis); ok {
			return fmt.Sprintf("query type %q, %s complexity, %d key concepts",
				a.QueryType, a.Complexity, len(a.KeyConcepts))
		}
	case InformationRetrieval:
		if docs, ok := s.Output[outputKeyRetrievedDocs].([]RetrievedDocument); ok {
			return fmt.Sprintf("retrieved %d documents", len(docs))
		}
	case FactExtraction:
		if facts, ok := s.Output[outputKeyFacts].([]Fact); ok {
			return fmt.Sprintf("extracted %d facts", len(facts))
		}
	case LogicalDeduction:
		if deds, ok := s.Output[outputKeyDeductions].([]Deduction); ok {
			return fmt.Sprintf("derived %d deductions", len(deds))
		}
	case Synthesis, Conclusion:
		if answer, ok := s.Output[outputKeyAnswer].(string); ok {
			return firstLine(answer)
		}
	case HypothesisGeneration:
		return "no hypotheses generated"
	case EvidenceEvaluation:
		return "no evidence evaluated"
	}
	return "completed"
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
