// Package pipeline wires discovery, the job queue, the worker pool and the
// normalizer into a single harvest run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/dispatcher"
	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/metrics"
	"github.com/JakeFAU/courthouse-harvester/internal/queue/memory"
	"github.com/JakeFAU/courthouse-harvester/internal/worker"
)

const (
	defaultConcurrency = 1
	defaultQueueDepth  = 64
)

// Config controls the shape of a run.
type Config struct {
	Mode        harvest.Mode
	Concurrency int
	QueueDepth  int
}

// Dependencies are the collaborators of a Harvester. Limiter is only
// consulted when Concurrency is above one.
type Dependencies struct {
	Discoverer harvest.Discoverer
	Fetcher    harvest.Fetcher
	Extractor  harvest.Extractor
	Normalizer harvest.Normalizer
	Retry      harvest.RetryPolicy
	Limiter    harvest.Limiter
	Pauser     harvest.Pauser
	Clock      harvest.Clock
	IDs        harvest.IDGenerator
}

// Result summarizes a finished run. Dataset is always populated, possibly
// with zero records.
type Result struct {
	RunID      string
	Mode       harvest.Mode
	Strategy   string
	Sources    int
	Records    int
	Dataset    harvest.Dataset
	StartedAt  time.Time
	FinishedAt time.Time
}

// Harvester runs one discovery → fetch → extract → normalize pass.
type Harvester struct {
	deps      Dependencies
	cfg       Config
	workerCfg worker.Config
	logger    *zap.Logger
}

// New constructs a Harvester.
func New(deps Dependencies, cfg Config, workerCfg worker.Config, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = harvest.ModeListing
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	return &Harvester{deps: deps, cfg: cfg, workerCfg: workerCfg, logger: logger}
}

// Run discovers sources, processes them on the worker pool and normalizes
// the collected records. The returned Result is valid even when an error
// is returned: ErrNoSources when discovery came up empty, or the context
// error when the run was canceled.
func (h *Harvester) Run(ctx context.Context) (Result, error) {
	runID, err := h.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	result := Result{
		RunID:     runID,
		Mode:      h.cfg.Mode,
		Strategy:  h.deps.Discoverer.Name(),
		StartedAt: h.deps.Clock.Now(),
	}
	logger := h.logger.With(
		zap.String("run_id", runID),
		zap.String("mode", string(h.cfg.Mode)),
		zap.String("strategy", result.Strategy),
	)
	logger.Info("harvest started", zap.Int("concurrency", h.cfg.Concurrency))

	queue := memory.NewQueue(h.cfg.QueueDepth)
	collector := harvest.NewCollector()
	pool := dispatcher.New(queue, h.workers(queue, collector, logger))

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	sources, discoverErr := h.discover(ctx, pool, logger)
	queue.Close()
	<-poolDone

	result.Sources = sources
	result.Dataset = h.deps.Normalizer.Normalize(h.cfg.Mode, collector.Records())
	result.Records = result.Dataset.Len()
	result.FinishedAt = h.deps.Clock.Now()

	fields := []zap.Field{
		zap.Int("sources", result.Sources),
		zap.Int("collected", collector.Len()),
		zap.Int("records", result.Records),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	}
	switch {
	case ctx.Err() != nil:
		logger.Warn("harvest canceled", fields...)
		return result, fmt.Errorf("harvest canceled: %w", ctx.Err())
	case sources == 0 && discoverErr != nil:
		logger.Error("harvest found no sources", append(fields, zap.Error(discoverErr))...)
		return result, fmt.Errorf("%w: %w", harvest.ErrNoSources, discoverErr)
	case sources == 0:
		logger.Error("harvest found no sources", fields...)
		return result, harvest.ErrNoSources
	}
	if discoverErr != nil {
		fields = append(fields, zap.NamedError("discovery_error", discoverErr))
	}
	logger.Info("harvest finished", fields...)
	return result, nil
}

// discover drains the discoverer into the queue. A discovery error ends
// iteration but keeps what was already enqueued.
func (h *Harvester) discover(ctx context.Context, pool *dispatcher.Dispatcher, logger *zap.Logger) (int, error) {
	var (
		count int
		err   error
	)
	for source, discoverErr := range h.deps.Discoverer.Discover(ctx) {
		if discoverErr != nil {
			logger.Warn("discovery ended with error", zap.Int("sources", count), zap.Error(discoverErr))
			err = discoverErr
			break
		}
		if enqueueErr := pool.Enqueue(ctx, harvest.Job{Index: count, Source: source}); enqueueErr != nil {
			if !errors.Is(enqueueErr, context.Canceled) && !errors.Is(enqueueErr, context.DeadlineExceeded) {
				logger.Error("enqueue failed", zap.Int("index", count), zap.Error(enqueueErr))
			}
			err = enqueueErr
			break
		}
		metrics.ObserveSource(h.deps.Discoverer.Name(), source.Kind())
		count++
	}
	logger.Debug("discovery finished", zap.Int("sources", count))
	return count, err
}

func (h *Harvester) workers(queue harvest.Queue, sink harvest.Sink, logger *zap.Logger) []*worker.Worker {
	limiter := h.deps.Limiter
	if h.cfg.Concurrency <= 1 {
		limiter = nil
	}
	out := make([]*worker.Worker, 0, h.cfg.Concurrency)
	for i := 0; i < h.cfg.Concurrency; i++ {
		out = append(out, worker.New(worker.Dependencies{
			Queue:     queue,
			Fetcher:   h.deps.Fetcher,
			Extractor: h.deps.Extractor,
			Sink:      sink,
			Retry:     h.deps.Retry,
			Limiter:   limiter,
			Pauser:    h.deps.Pauser,
		}, h.workerCfg, logger.Named("worker").With(zap.Int("worker", i))))
	}
	return out
}
