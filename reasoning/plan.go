package reasoning

import "fmt"

// PlanState tracks a plan through its lifecycle. Validation failures
// prevent a plan from ever being built; once execution starts the plan
// always reaches Completed.
type PlanState int

const (
	Built PlanState = iota
	Running
	Completed
)

func (s PlanState) String() string {
	switch s {
	case Built:
		return "built"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("PlanState(%d)", int(s))
	}
}

// UnknownDependencyError is returned when a step declares a dependency on
// a step id not present in the plan.
type UnknownDependencyError struct {
	StepID     string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %s depends on unknown step %s", e.StepID, e.Dependency)
}

// CyclicDependencyError is returned when the dependency graph contains a
// cycle, including a step depending on itself.
type CyclicDependencyError struct {
	StepID string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency involving step %s", e.StepID)
}

// DuplicateStepIDError is returned when two steps share an id.
type DuplicateStepIDError struct {
	StepID string
}

func (e *DuplicateStepIDError) Error() string {
	return fmt.Sprintf("duplicate step id: %s", e.StepID)
}

// InvalidStepTypeError is returned for a step whose type is not in the
// closed set.
type InvalidStepTypeError struct {
	StepID string
	Type   StepType
}

func (e *InvalidStepTypeError) Error() string {
	return fmt.Sprintf("step %s has invalid type %q", e.StepID, e.Type)
}

// Plan is a validated, dependency-ordered graph of reasoning steps for one
// query.
type Plan struct {
	Query string  `json:"query"`
	Steps []*Step `json:"steps"`

	// ExecutionOrder is a deterministic topological linearization of
	// Steps: every step appears after all of its dependencies.
	ExecutionOrder []string `json:"execution_order"`

	FinalAnswer string    `json:"final_answer,omitempty"`
	Confidence  float64   `json:"confidence_score"`
	State       PlanState `json:"state"`

	byID map[string]*Step
}

// NewPlan validates the steps as a DAG and computes the execution order.
// The baseline policy emits a linear chain, but arbitrary DAGs are
// supported.
func NewPlan(query string, steps []*Step) (*Plan, error) {
	byID := make(map[string]*Step, len(steps))
	for _, s := range steps {
		if !s.Type.Valid() {
			return nil, &InvalidStepTypeError{StepID: s.ID, Type: s.Type}
		}
		if _, ok := byID[s.ID]; ok {
			return nil, &DuplicateStepIDError{StepID: s.ID}
		}
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{StepID: s.ID, Dependency: dep}
			}
		}
	}

	order, err := topoSort(steps, byID)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Query:          query,
		Steps:          steps,
		ExecutionOrder: order,
		State:          Built,
		byID:           byID,
	}, nil
}

// Step returns the step with the given id.
func (p *Plan) Step(id string) (*Step, bool) {
	s, ok := p.byID[id]
	return s, ok
}

// TerminalStep returns the last step in execution order.
func (p *Plan) TerminalStep() *Step {
	if len(p.ExecutionOrder) == 0 {
		return nil
	}
	s := p.byID[p.ExecutionOrder[len(p.ExecutionOrder)-1]]
	return s
}

// Summaries returns the caller-facing digest of every step in execution
// order.
func (p *Plan) Summaries() []Summary {
	out := make([]Summary, 0, len(p.ExecutionOrder))
	for _, id := range p.ExecutionOrder {
		s := p.byID[id]
		out = append(out, Summary{
			ID:           s.ID,
			Type:         s.Type,
			Description:  s.Description,
			Confidence:   s.Confidence,
			Dependencies: s.Dependencies,
			Output:       s.summarize(),
		})
	}
	return out
}

// visit colors for the topological sort.
const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // done
)

// topoSort computes a deterministic DFS-based topological order: steps are
// visited in declared list order, dependencies are explored before the
// step itself. The recursion is unrolled onto an explicit stack so deep
// graphs cannot overflow the call stack; the resulting order matches the
// recursive formulation exactly.
func topoSort(steps []*Step, byID map[string]*Step) ([]string, error) {
	color := make(map[string]int, len(steps))
	order := make([]string, 0, len(steps))

	type frame struct {
		id   string
		next int // index of the next dependency to explore
	}

	for _, root := range steps {
		if color[root.ID] != white {
			continue
		}

		stack := []frame{{id: root.ID}}
		color[root.ID] = gray

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			deps := byID[f.id].Dependencies

			if f.next < len(deps) {
				dep := deps[f.next]
				f.next++

				switch color[dep] {
				case gray:
					return nil, &CyclicDependencyError{StepID: dep}
				case white:
					color[dep] = gray
					stack = append(stack, frame{id: dep})
				}
				continue
			}

			color[f.id] = black
			order = append(order, f.id)
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// BuildPlan analyzes the query and assembles the baseline step chain:
//
//	QueryAnalysis -> InformationRetrieval
//	  -> FactExtraction        (moderate and complex queries)
//	  -> LogicalDeduction      (complex queries)
//	  -> Synthesis | Conclusion
//
// Each step depends on its immediate predecessor. Synthesis terminates
// complex plans; everything else ends in Conclusion.
func BuildPlan(query string) (*Plan, error) {
	analysis := Analyze(query)

	var steps []*Step
	counter := 0
	appendStep := func(t StepType, description string) *Step {
		counter++
		id := fmt.Sprintf("step_%d", counter)
		var deps []string
		if len(steps) > 0 {
			deps = []string{steps[len(steps)-1].ID}
		}
		s := NewStep(id, t, description, deps...)
		steps = append(steps, s)
		return s
	}

	qa := appendStep(QueryAnalysis, "Analyze query to understand requirements")
	qa.Input["query"] = query

	ir := appendStep(InformationRetrieval, "Retrieve relevant information from document store")
	ir.Input["query"] = query
	ir.Input["key_concepts"] = analysis.KeyConcepts

	if analysis.Complexity == Moderate || analysis.Complexity == Complex {
		appendStep(FactExtraction, "Extract key facts from retrieved information")
	}
	if analysis.Complexity == Complex {
		appendStep(LogicalDeduction, "Apply logical reasoning to extracted facts")
	}

	if analysis.Complexity == Complex {
		appendStep(Synthesis, "Synthesize information into final answer")
	} else {
		appendStep(Conclusion, "Conclude with an answer from retrieved information")
	}

	return NewPlan(query, steps)
}
