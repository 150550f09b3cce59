package researchgo

import (
	"log/slog"
	"time"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/codec"
	"github.com/hupe1980/researchgo/config"
	"github.com/hupe1980/researchgo/embedding"
)

type options struct {
	provider    embedding.Provider
	blobStore   blobstore.BlobStore
	dataDir     string
	codec       codec.Codec
	logger      *Logger
	budget      time.Duration
	concurrent  bool
	topK        int
	threshold   float32
	historyPath string
}

func defaultOptions() options {
	return options{
		codec:  codec.Default,
		logger: NewLogger(nil),
		topK:   10,
		budget: 30 * time.Second,
	}
}

// Option configures the orchestrator.
type Option func(*options)

// WithProvider sets the embedding provider. Without one, documents are
// stored unindexed and searches report embedding unavailability.
func WithProvider(p embedding.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithBlobStore persists snapshots to the given store (memory, MinIO, S3).
// Takes precedence over WithDataDir.
func WithBlobStore(s blobstore.BlobStore) Option {
	return func(o *options) { o.blobStore = s }
}

// WithDataDir persists snapshots to a local directory.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithCodec configures the codec used for the persisted document ledger.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPlanBudget sets the wall-clock budget for one plan execution.
// Zero disables the budget.
func WithPlanBudget(d time.Duration) Option {
	return func(o *options) { o.budget = d }
}

// WithConcurrentExecution runs independent plan steps in parallel.
func WithConcurrentExecution(enabled bool) Option {
	return func(o *options) { o.concurrent = enabled }
}

// WithTopK sets how many documents retrieval requests.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithSimilarityThreshold sets the minimum similarity for retrieved
// documents.
func WithSimilarityThreshold(t float32) Option {
	return func(o *options) { o.threshold = t }
}

// WithHistory records executed queries in a SQLite database at path.
func WithHistory(path string) Option {
	return func(o *options) { o.historyPath = path }
}

// FromConfig derives options from a loaded configuration file.
func FromConfig(cfg config.Config) []Option {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := NewTextLogger(level)
	if cfg.Log.Format == "json" {
		logger = NewJSONLogger(level)
	}

	var provider embedding.Provider = embedding.NewLocalProvider(cfg.Embedding.Dimension)
	if cfg.Embedding.RPS > 0 {
		provider = embedding.NewRateLimitedProvider(provider, cfg.Embedding.RPS, cfg.Embedding.Burst)
	}
	if cfg.Embedding.Cache {
		provider = embedding.NewCachingProvider(provider)
	}

	opts := []Option{
		WithProvider(provider),
		WithDataDir(cfg.DataDir),
		WithLogger(logger),
		WithPlanBudget(cfg.Reasoning.Budget),
		WithConcurrentExecution(cfg.Reasoning.Concurrent),
		WithTopK(cfg.Search.TopK),
		WithSimilarityThreshold(cfg.Search.Threshold),
	}
	if c, ok := codec.ByName(cfg.Codec); ok {
		opts = append(opts, WithCodec(c))
	}
	if cfg.HistoryPath != "" {
		opts = append(opts, WithHistory(cfg.HistoryPath))
	}
	return opts
}
