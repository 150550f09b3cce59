package researchgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/docstore"
	"github.com/hupe1980/researchgo/history"
	"github.com/hupe1980/researchgo/model"
	"github.com/hupe1980/researchgo/persistence"
	"github.com/hupe1980/researchgo/reasoning"
)

// Result is the outcome of one orchestrated query execution.
type Result struct {
	Query       string              `json:"query"`
	FinalAnswer string              `json:"final_answer"`
	Confidence  float64             `json:"confidence"`
	Steps       []reasoning.Summary `json:"steps"`
	Documents   []model.SearchHit   `json:"documents,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

// ResearchGo composes the document store and the reasoning executor behind
// one query surface.
type ResearchGo struct {
	store    *docstore.Store
	executor *reasoning.Executor
	history  *history.Store
	logger   *Logger

	topK      int
	threshold float32
}

// New creates an orchestrator. With a blob store or data directory
// configured, the committed snapshot is loaded; otherwise the store starts
// empty and lives in memory.
func New(ctx context.Context, optFns ...Option) (*ResearchGo, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	blobs := opts.blobStore
	if blobs == nil && opts.dataDir != "" {
		local, err := blobstore.NewLocalStore(opts.dataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		blobs = local
	}

	storeOpts := []docstore.Option{
		docstore.WithProvider(opts.provider),
		docstore.WithLogger(opts.logger.Logger),
	}

	var store *docstore.Store
	var err error
	if blobs != nil {
		storeOpts = append(storeOpts, docstore.WithManager(persistence.NewManager(blobs, opts.codec)))
		store, err = docstore.Open(ctx, storeOpts...)
	} else {
		store, err = docstore.New(storeOpts...)
	}
	if err != nil {
		return nil, err
	}

	executor := reasoning.NewExecutor(
		reasoning.WithStore(store),
		reasoning.WithBudget(opts.budget),
		reasoning.WithConcurrent(opts.concurrent),
		reasoning.WithTopK(opts.topK),
		reasoning.WithThreshold(opts.threshold),
		reasoning.WithExecutorLogger(opts.logger.Logger),
	)

	ra := &ResearchGo{
		store:     store,
		executor:  executor,
		logger:    opts.logger,
		topK:      opts.topK,
		threshold: opts.threshold,
	}

	if opts.historyPath != "" {
		h, err := history.Open(opts.historyPath)
		if err != nil {
			store.Close()
			return nil, err
		}
		ra.history = h
	}

	return ra, nil
}

// Store exposes the document store for ingestion and direct search.
func (ra *ResearchGo) Store() *docstore.Store { return ra.store }

// History returns the query history, or nil when history is disabled.
func (ra *ResearchGo) History() *history.Store { return ra.history }

// Executor exposes the reasoning executor, e.g. to install handlers for
// the extension step types.
func (ra *ResearchGo) Executor() *reasoning.Executor { return ra.executor }

// Run builds a reasoning plan for the query, executes it and returns the
// aggregated result. Plan validation failures are returned as errors; once
// execution starts the plan always completes, degraded or not.
func (ra *ResearchGo) Run(ctx context.Context, query string) (*Result, error) {
	start := time.Now()

	plan, err := reasoning.BuildPlan(query)
	if err != nil {
		ra.logger.LogRun(ctx, query, 0, 0, err)
		return nil, err
	}

	ra.executor.Execute(ctx, plan)

	// Full documents for the caller; the plan itself only carries bounded
	// snippets. A query that cannot be embedded yields no documents.
	docs, err := ra.store.Search(ctx, query, ra.topK, ra.threshold)
	if err != nil && !errors.Is(err, docstore.ErrEmbeddingUnavailable) {
		return nil, err
	}

	result := &Result{
		Query:       query,
		FinalAnswer: plan.FinalAnswer,
		Confidence:  plan.Confidence,
		Steps:       plan.Summaries(),
		Documents:   docs,
		Duration:    time.Since(start),
	}

	if ra.history != nil {
		entry := history.Entry{
			Query:       query,
			FinalAnswer: result.FinalAnswer,
			Confidence:  result.Confidence,
			StepCount:   len(result.Steps),
			Duration:    result.Duration,
		}
		if err := ra.history.Append(ctx, entry); err != nil {
			ra.logger.WarnContext(ctx, "failed to record history entry", "error", err)
		}
	}

	ra.logger.LogRun(ctx, query, result.Confidence, len(result.Steps), nil)
	return result, nil
}

// Save persists a snapshot of the document store.
func (ra *ResearchGo) Save(ctx context.Context) error {
	return ra.store.Save(ctx)
}

// Close releases resources. The document store is not saved implicitly;
// call Save first if durability is wanted.
func (ra *ResearchGo) Close() error {
	var errs []error
	if ra.history != nil {
		if err := ra.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ra.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
