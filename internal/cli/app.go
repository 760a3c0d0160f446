package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/chunker"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/config"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/embedder"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/extractor"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/hasher"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/idempotency"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/pipeline"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/queue"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/reasoner"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/retry"
	"github.com/ShristiC7/Contract-Intelligence-Engine/internal/storage"
)

// app bundles the wired service components shared by the commands.
type app struct {
	cfg    *config.Config
	store  *storage.SQLiteStorage
	queue  *queue.JobQueue
	logger *slog.Logger
}

// openApp loads the configuration and opens the storage-backed queue. The
// caller must Close the app.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}

	logger := newLogger(opts.Verbose)

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}

	q := queue.New(store, logger,
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithBackoff(retry.Config{
			MaxAttempts: cfg.Queue.MaxAttempts,
			BaseDelay:   cfg.Queue.RetryBaseDelay.Std(),
			MaxDelay:    cfg.Queue.RetryMaxDelay.Std(),
			Multiplier:  2.0,
		}),
	)

	return &app{cfg: cfg, store: store, queue: q, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildPipeline wires the analysis stages from the configuration.
func (a *app) buildPipeline() (*pipeline.Pipeline, error) {
	emb, err := embedder.New(embedder.Config{
		Provider:  a.cfg.Embedding.Provider,
		CacheSize: a.cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	var client reasoner.ReasoningClient
	if url := a.cfg.Reasoning.URL; url != "" {
		client = reasoner.NewHTTPClient(url, a.cfg.Pipeline.ReasoningTimeout.Std())
	} else {
		client = reasoner.NewLocalAnalyzer()
	}
	retrying := reasoner.NewRetrying(client, retry.Config{
		MaxAttempts: a.cfg.Queue.MaxAttempts,
		BaseDelay:   a.cfg.Queue.RetryBaseDelay.Std(),
		MaxDelay:    a.cfg.Queue.RetryMaxDelay.Std(),
		Multiplier:  2.0,
	})

	guard := idempotency.NewGuard(a.store, a.cfg.Pipeline.MarkerTTL.Std(), a.logger)

	return pipeline.New(
		hasher.New(),
		guard,
		extractor.Default(extractor.NewStubEngine()),
		chunker.New(a.cfg.Pipeline.ChunkWindow),
		emb,
		retrying,
		a.store,
		a.logger,
		pipeline.Options{
			OCRTimeout:       a.cfg.Pipeline.OCRTimeout.Std(),
			ReasoningTimeout: a.cfg.Pipeline.ReasoningTimeout.Std(),
		},
	), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
