package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/researchgo/docstore"
	"github.com/hupe1980/researchgo/metadata"
	"github.com/hupe1980/researchgo/model"
)

// Searcher is the slice of the document store the executor consumes.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float32, filters ...metadata.Filter) ([]model.SearchHit, error)
}

var _ Searcher = (*docstore.Store)(nil)

// StepExecutionError wraps a handler failure. It is isolated to its step:
// the output becomes an error record, the confidence drops to 0, and the
// plan keeps running.
type StepExecutionError struct {
	StepID string
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Store provides retrieval. A nil store degrades retrieval steps to
	// empty results.
	Store Searcher

	// Budget is the wall-clock budget for a whole plan. When it runs out,
	// remaining steps are marked timed out instead of executed and the
	// plan still completes. Zero means no budget.
	Budget time.Duration

	// Concurrent executes independent dependency waves in parallel. The
	// observable result is identical to serial execution.
	Concurrent bool

	// TopK and Threshold parameterize retrieval.
	TopK      int
	Threshold float32

	Logger *slog.Logger
}

// DefaultExecutorOptions returns the default executor options.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		TopK:   10,
		Logger: slog.Default(),
	}
}

// ExecutorOption is a functional option for configuring an Executor.
type ExecutorOption func(*ExecutorOptions)

// WithStore sets the document store used by retrieval steps.
func WithStore(s Searcher) ExecutorOption {
	return func(o *ExecutorOptions) { o.Store = s }
}

// WithBudget sets the whole-plan wall-clock budget.
func WithBudget(d time.Duration) ExecutorOption {
	return func(o *ExecutorOptions) { o.Budget = d }
}

// WithConcurrent enables concurrent execution of independent steps.
func WithConcurrent(enabled bool) ExecutorOption {
	return func(o *ExecutorOptions) { o.Concurrent = enabled }
}

// WithTopK sets the number of documents retrieval steps request.
func WithTopK(k int) ExecutorOption {
	return func(o *ExecutorOptions) {
		if k > 0 {
			o.TopK = k
		}
	}
}

// WithThreshold sets the minimum similarity for retrieved documents.
func WithThreshold(t float32) ExecutorOption {
	return func(o *ExecutorOptions) { o.Threshold = t }
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(o *ExecutorOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Executor runs validated plans against a closed handler table.
type Executor struct {
	store      Searcher
	budget     time.Duration
	concurrent bool
	topK       int
	threshold  float32
	logger     *slog.Logger

	handlers map[StepType]Handler
}

// NewExecutor creates an executor. Every step type has a handler; the
// table is checked at construction so an unhandled type cannot slip
// through to execution time.
func NewExecutor(optFns ...ExecutorOption) *Executor {
	opts := DefaultExecutorOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Executor{
		store:      opts.Store,
		budget:     opts.Budget,
		concurrent: opts.Concurrent,
		topK:       opts.TopK,
		threshold:  opts.Threshold,
		logger:     opts.Logger,
	}

	e.handlers = map[StepType]Handler{
		QueryAnalysis:        e.handleQueryAnalysis,
		InformationRetrieval: e.handleInformationRetrieval,
		FactExtraction:       e.handleFactExtraction,
		LogicalDeduction:     e.handleLogicalDeduction,
		HypothesisGeneration: e.handleHypothesisGeneration,
		EvidenceEvaluation:   e.handleEvidenceEvaluation,
		Synthesis:            e.handleSynthesis,
		Conclusion:           e.handleConclusion,
	}
	for _, t := range StepTypes {
		if _, ok := e.handlers[t]; !ok {
			panic(fmt.Sprintf("reasoning: no handler for step type %q", t))
		}
	}

	return e
}

// SetHandler replaces the handler for a step type. Intended for extension
// points (HypothesisGeneration, EvidenceEvaluation) and failure-injection
// in tests.
func (e *Executor) SetHandler(t StepType, h Handler) {
	if !t.Valid() {
		panic(fmt.Sprintf("reasoning: invalid step type %q", t))
	}
	e.handlers[t] = h
}

// Execute runs the plan to completion. Individual step failures and an
// exhausted budget degrade the result but never abort it: the returned
// plan is always Completed with a final answer and a confidence score.
func (e *Executor) Execute(ctx context.Context, plan *Plan) *Plan {
	start := time.Now()
	plan.State = Running
	e.logger.InfoContext(ctx, "executing plan", "query", plan.Query, "steps", len(plan.ExecutionOrder))

	var deadline time.Time
	if e.budget > 0 {
		deadline = start.Add(e.budget)
	}

	if e.concurrent {
		e.runConcurrent(ctx, plan, deadline)
	} else {
		e.runSerial(ctx, plan, deadline)
	}

	plan.FinalAnswer = finalAnswer(plan)
	plan.Confidence = meanConfidence(plan)
	plan.State = Completed

	e.logger.InfoContext(ctx, "plan completed",
		"query", plan.Query,
		"confidence", plan.Confidence,
		"duration", time.Since(start),
	)
	return plan
}

func (e *Executor) runSerial(ctx context.Context, plan *Plan, deadline time.Time) {
	for _, id := range plan.ExecutionOrder {
		step, _ := plan.Step(id)
		if expired(ctx, deadline) {
			markTimedOut(step)
			continue
		}
		e.runStep(ctx, plan, step)
	}
}

// runConcurrent executes the plan in dependency waves: every step in a
// wave only depends on steps from earlier waves, so steps within a wave
// are independent and can run in parallel. Wave boundaries preserve the
// serial observable result.
func (e *Executor) runConcurrent(ctx context.Context, plan *Plan, deadline time.Time) {
	level := make(map[string]int, len(plan.ExecutionOrder))
	var waves [][]*Step
	for _, id := range plan.ExecutionOrder {
		step, _ := plan.Step(id)
		lvl := 0
		for _, dep := range step.Dependencies {
			if l := level[dep] + 1; l > lvl {
				lvl = l
			}
		}
		level[id] = lvl
		for len(waves) <= lvl {
			waves = append(waves, nil)
		}
		waves[lvl] = append(waves[lvl], step)
	}

	for _, wave := range waves {
		if expired(ctx, deadline) {
			for _, step := range wave {
				markTimedOut(step)
			}
			continue
		}

		var g errgroup.Group
		for _, step := range wave {
			step := step
			g.Go(func() error {
				e.runStep(ctx, plan, step)
				return nil
			})
		}
		_ = g.Wait() // step failures are isolated, never returned
	}
}

func (e *Executor) runStep(ctx context.Context, plan *Plan, step *Step) {
	input := gatherInput(plan, step)
	step.Input = input

	out, err := e.handlers[step.Type](ctx, step, input)
	if err != nil {
		stepErr := &StepExecutionError{StepID: step.ID, Err: err}
		e.logger.ErrorContext(ctx, "step failed", "step", step.ID, "type", step.Type, "error", err)
		step.Output = map[string]any{outputKeyError: stepErr.Error()}
		step.Confidence = 0
		return
	}

	step.Output = out
	e.logger.DebugContext(ctx, "step completed", "step", step.ID, "type", step.Type)
}

// gatherInput unions a step's static input with one generically keyed
// reference per declared dependency.
func gatherInput(plan *Plan, step *Step) map[string]any {
	input := make(map[string]any, len(step.Input)+len(step.Dependencies))
	for k, v := range step.Input {
		input[k] = v
	}
	for _, dep := range step.Dependencies {
		if d, ok := plan.Step(dep); ok && d.Output != nil {
			input[DepKey(dep)] = d.Output
		}
	}
	return input
}

func expired(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && time.Now().After(deadline)
}

func markTimedOut(step *Step) {
	step.Output = map[string]any{
		outputKeyError:   "plan budget exceeded before step could run",
		outputKeyTimeout: true,
	}
	step.Confidence = 0
}

// finalAnswer extracts the answer from the terminal step, falling back to
// a well-defined string when it produced none. A completed plan never has
// an empty answer.
func finalAnswer(plan *Plan) string {
	terminal := plan.TerminalStep()
	if terminal == nil {
		return "No reasoning steps were executed."
	}
	if answer, ok := terminal.Output[outputKeyAnswer].(string); ok && answer != "" {
		return answer
	}
	if errMsg, ok := terminal.Output[outputKeyError].(string); ok {
		return fmt.Sprintf("No answer could be produced: the final reasoning step did not complete (%s).", errMsg)
	}
	return "No answer could be produced: the final reasoning step yielded no output."
}

func meanConfidence(plan *Plan) float64 {
	if len(plan.Steps) == 0 {
		return 0
	}
	var total float64
	for _, s := range plan.Steps {
		total += s.Confidence
	}
	return total / float64(len(plan.Steps))
}
