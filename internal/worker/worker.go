// Package worker executes harvest jobs: fetch with retry, politeness pause,
// extraction and collection.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/metrics"
)

const defaultFetchTimeout = 15 * time.Second

// Config controls Worker behavior.
type Config struct {
	// FetchTimeout bounds every detail fetch attempt.
	FetchTimeout time.Duration
	// PoliteDelay is paused after every detail fetch, successful or not.
	PoliteDelay time.Duration
}

// Dependencies are the collaborators a Worker needs. Limiter is optional.
type Dependencies struct {
	Queue     harvest.Queue
	Fetcher   harvest.Fetcher
	Extractor harvest.Extractor
	Sink      harvest.Sink
	Retry     harvest.RetryPolicy
	Limiter   harvest.Limiter
	Pauser    harvest.Pauser
}

// Worker consumes jobs until the queue is drained or the context ends.
type Worker struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Dependencies, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if deps.Pauser == nil {
		deps.Pauser = harvest.TimerPauser{}
	}
	if deps.Retry == nil {
		deps.Retry = harvest.NewExponentialRetryPolicy(0, 0, 0)
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks, processing jobs until the queue is closed and drained or ctx
// is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, harvest.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.Process(ctx, job)
	}
}

// Process handles one job. Inline sources are collected directly; URL
// sources are fetched, paused after, extracted and collected. Failures are
// logged and the job is dropped.
func (w *Worker) Process(ctx context.Context, job harvest.Job) {
	if job.Source.IsInline() {
		w.collect(job, *job.Source.Inline)
		return
	}
	if ctx.Err() != nil {
		return
	}

	url := job.Source.URL
	resp, err := w.fetch(ctx, url)
	w.deps.Pauser.Pause(ctx, w.cfg.PoliteDelay)
	if err != nil {
		metrics.ObserveRecord(metrics.OutcomeFailed)
		w.logger.Warn("detail fetch failed", zap.Int("index", job.Index), zap.String("url", url), zap.Error(err))
		return
	}
	if !resp.OK() {
		metrics.ObserveRecord(metrics.OutcomeRejected)
		w.logger.Warn("detail fetch rejected",
			zap.Int("index", job.Index),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	record, ok := w.deps.Extractor.Extract(harvest.Page{URL: url, Body: resp.Body})
	if !ok {
		metrics.ObserveRecord(metrics.OutcomeEmpty)
		w.logger.Info("no fields extracted", zap.Int("index", job.Index), zap.String("url", url))
		return
	}
	w.collect(job, record)
}

func (w *Worker) collect(job harvest.Job, record harvest.RawRecord) {
	if !record.Usable() {
		metrics.ObserveRecord(metrics.OutcomeUnusable)
		w.logger.Debug("record without name or city dropped",
			zap.Int("index", job.Index),
			zap.String("source", job.Source.Kind()),
		)
		return
	}
	w.deps.Sink.Add(job.Index, record)
	metrics.ObserveRecord(metrics.OutcomeCollected)
	w.logger.Debug("record collected", zap.Int("index", job.Index), zap.String("name", record.Name))
}

// fetch runs the attempt loop. Attempts run detached from ctx so an
// in-flight request finishes under its own timeout; cancellation only
// prevents further attempts.
func (w *Worker) fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	detached := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		if w.deps.Limiter != nil {
			if err := w.deps.Limiter.Wait(ctx, url); err != nil {
				return harvest.FetchResponse{}, err
			}
		}

		resp, err := w.attempt(detached, url)
		if !w.deps.Retry.ShouldRetry(err, resp.StatusCode, attempt) || ctx.Err() != nil {
			return resp, err
		}

		metrics.ObserveRetry(url)
		backoff := w.deps.Retry.Backoff(attempt)
		w.logger.Debug("retrying detail fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		w.deps.Pauser.Pause(ctx, backoff)
		if ctx.Err() != nil {
			return resp, err
		}
	}
}

func (w *Worker) attempt(ctx context.Context, url string) (harvest.FetchResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := w.deps.Fetcher.Fetch(attemptCtx, harvest.FetchRequest{
		URL:     url,
		Method:  http.MethodGet,
		Timeout: w.cfg.FetchTimeout,
	})
	if err != nil {
		metrics.ObserveFetch(url, 0, time.Since(start))
		return harvest.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	metrics.ObserveFetch(url, resp.StatusCode, time.Since(start))
	return resp, nil
}
