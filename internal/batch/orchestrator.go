// Package batch runs bounded-concurrency fan-out over independent
// sub-tasks, collecting per-item success or failure without letting one
// item's failure cancel its siblings.
package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/knowledged/internal/batch"

// ErrNotDispatched marks items whose dispatch was stopped by batch
// cancellation before they started.
var ErrNotDispatched = errors.New("batch canceled before item dispatch")

// Item is the outcome of one sub-task, at its original input position.
type Item[T any] struct {
	Index   int
	Value   T
	Err     error
	Elapsed time.Duration
}

// Results aggregates a batch run. Items always has exactly one entry per
// input, in input order.
type Results[T any] struct {
	Items     []Item[T]
	Succeeded int
	Failed    int
	P50       time.Duration
	P95       time.Duration
}

// Orchestrator bounds how many sub-tasks execute simultaneously against
// a shared downstream resource. The bound is process-wide: every Run on
// the same orchestrator draws from one semaphore, so overlapping batches
// together never exceed maxConcurrency in-flight tasks.
type Orchestrator struct {
	maxConcurrency int
	sem            chan struct{}
	metrics        *Metrics
	logger         *zap.Logger
}

// New creates an orchestrator with the given concurrency bound.
func New(maxConcurrency int, metrics *Metrics, logger *zap.Logger) *Orchestrator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		maxConcurrency: maxConcurrency,
		sem:            make(chan struct{}, maxConcurrency),
		metrics:        metrics,
		logger:         logger,
	}
}

// MaxConcurrency returns the configured bound.
func (o *Orchestrator) MaxConcurrency() int {
	return o.maxConcurrency
}

// Run executes n sub-tasks with at most the configured number in flight.
//
// Each result lands in its original input slot regardless of completion
// order. Canceling ctx stops dispatch of not-yet-started items (their
// slots carry ErrNotDispatched) but lets already-dispatched tasks finish:
// external calls already billed should not be wasted. Task contexts are
// therefore detached from the batch cancellation.
func Run[T any](ctx context.Context, o *Orchestrator, n int, task func(ctx context.Context, index int) (T, error)) *Results[T] {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "batch.run")
	span.SetAttributes(
		attribute.Int("batch.size", n),
		attribute.Int("batch.max_concurrency", o.maxConcurrency),
	)
	defer span.End()

	results := &Results[T]{Items: make([]Item[T], n)}
	for i := range results.Items {
		results.Items[i].Index = i
	}

	// Dispatched tasks run to completion even if the batch is canceled.
	taskCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup

dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			cause := context.Cause(ctx)
			for j := i; j < n; j++ {
				results.Items[j].Err = errors.Join(ErrNotDispatched, cause)
			}
			o.logger.Debug("batch dispatch stopped",
				zap.Int("dispatched", i),
				zap.Int("remaining", n-i),
				zap.Error(cause))
			break dispatch
		case o.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-o.sem }()

			o.metrics.incInFlight()
			defer o.metrics.decInFlight()

			start := time.Now()
			value, err := task(taskCtx, i)
			elapsed := time.Since(start)

			results.Items[i].Value = value
			results.Items[i].Err = err
			results.Items[i].Elapsed = elapsed
			o.metrics.recordItem(elapsed, err)
		}(i)
	}

	wg.Wait()

	var completed []time.Duration
	for i := range results.Items {
		item := &results.Items[i]
		switch {
		case item.Err == nil && item.Elapsed > 0:
			results.Succeeded++
			completed = append(completed, item.Elapsed)
		case item.Err == nil:
			// Dispatched tasks always set Elapsed; a zero here means the
			// zero-input edge case and counts as success.
			results.Succeeded++
		default:
			results.Failed++
			if item.Elapsed > 0 {
				completed = append(completed, item.Elapsed)
			}
		}
	}
	results.P50, results.P95 = percentiles(completed)

	span.SetAttributes(
		attribute.Int("batch.succeeded", results.Succeeded),
		attribute.Int("batch.failed", results.Failed),
	)
	return results
}

// percentiles computes p50/p95 over completed item latencies using the
// nearest-rank method. Returns zeros for an empty input.
func percentiles(durations []time.Duration) (p50, p95 time.Duration) {
	if len(durations) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := func(p float64) time.Duration {
		idx := int(float64(len(sorted))*p+0.5) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return rank(0.50), rank(0.95)
}
