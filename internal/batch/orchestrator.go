// Package batch audits many URLs with bounded concurrency. Cached
// results are served first, the remaining URLs run in fixed-size
// batches with a worker cap and a pause between batches so target
// sites are not hammered.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/telemetry"
)

// Auditor analyzes one URL. *analyzer.Analyzer satisfies it.
type Auditor interface {
	Analyze(ctx context.Context, url string) (audit.AnalysisResult, error)
}

// Config controls batch shape. Zero values get defaults in New.
type Config struct {
	// BatchSize is the number of URLs processed per batch.
	BatchSize int
	// MaxConcurrent caps workers within a batch.
	MaxConcurrent int
	// Pause is the delay between consecutive batches.
	Pause time.Duration
}

// Orchestrator runs batch audits. Safe for concurrent use.
type Orchestrator struct {
	auditor Auditor
	cache   audit.ResultCache
	cfg     Config
	log     *zap.Logger
}

// New builds an Orchestrator. cache may be nil to disable caching,
// logger may be nil.
func New(auditor Auditor, cache audit.ResultCache, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Pause <= 0 {
		cfg.Pause = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{auditor: auditor, cache: cache, cfg: cfg, log: logger}
}

// Run audits every URL and returns one result per URL, in input order.
// A cancelled or expired context stops new work; URLs not reached by
// then come back as Error-graded results.
func (o *Orchestrator) Run(ctx context.Context, urls []string) []audit.AnalysisResult {
	results := make([]audit.AnalysisResult, len(urls))

	var misses []int
	for i, u := range urls {
		if o.cache != nil {
			if cached, ok := o.cache.Get(u); ok {
				telemetry.ObserveCacheLookup(true)
				results[i] = cached
				continue
			}
			telemetry.ObserveCacheLookup(false)
		}
		misses = append(misses, i)
	}
	o.log.Info("batch planned",
		zap.Int("urls", len(urls)),
		zap.Int("cached", len(urls)-len(misses)),
		zap.Int("to_audit", len(misses)))

	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	for start := 0; start < len(misses); start += o.cfg.BatchSize {
		if ctx.Err() != nil {
			o.fillCancelled(results, urls, misses[start:], ctx.Err())
			return results
		}
		if start > 0 {
			if !o.pause(ctx) {
				o.fillCancelled(results, urls, misses[start:], ctx.Err())
				return results
			}
		}

		end := start + o.cfg.BatchSize
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]
		o.log.Debug("batch started", zap.Int("size", len(chunk)))

		var wg sync.WaitGroup
		for _, idx := range chunk {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = cancelledResult(urls[idx], err)
				continue
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer sem.Release(1)
				results[idx] = o.auditOne(ctx, urls[idx])
			}(idx)
		}
		wg.Wait()
	}
	return results
}

func (o *Orchestrator) auditOne(ctx context.Context, url string) audit.AnalysisResult {
	telemetry.IncActiveWorkers()
	defer telemetry.DecActiveWorkers()

	result, err := o.auditor.Analyze(ctx, url)
	if err != nil {
		o.log.Warn("audit failed", zap.String("url", url), zap.Error(err))
	}
	// Set is attempted for every result; the cache itself refuses
	// Error grades. No cache writes once the context has ended.
	if o.cache != nil && ctx.Err() == nil {
		if err := o.cache.Set(url, result); err != nil {
			o.log.Warn("cache store failed", zap.String("url", url), zap.Error(err))
		}
	}
	return result
}

// pause sleeps between batches, returning false if the context ended.
func (o *Orchestrator) pause(ctx context.Context) bool {
	t := time.NewTimer(o.cfg.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) fillCancelled(results []audit.AnalysisResult, urls []string, remaining []int, cause error) {
	o.log.Warn("batch stopped early", zap.Int("skipped", len(remaining)), zap.Error(cause))
	for _, idx := range remaining {
		results[idx] = cancelledResult(urls[idx], cause)
	}
}

func cancelledResult(url string, cause error) audit.AnalysisResult {
	msg := "audit cancelled"
	if cause != nil {
		msg = "audit cancelled: " + cause.Error()
	}
	return audit.ErrorResult(url, "Batch", msg)
}
