package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsddscan/bsddscan/internal/metrics"
	"github.com/bsddscan/bsddscan/internal/model"
)

// Default crawl settings. These match the politeness characteristics of the
// public bSDD service: eight parallel requests with a 200ms per-worker pause
// keeps the sustained rate well under what the API tolerates.
const (
	// DefaultWorkers is the worker pool size (maximum concurrent fetches).
	DefaultWorkers = 8

	// DefaultDelay is the politeness delay applied per worker after each
	// fetch.
	DefaultDelay = 200 * time.Millisecond

	// DefaultFetchTimeout bounds a single fetch so one unresponsive class
	// cannot stall a wave forever.
	DefaultFetchTimeout = 30 * time.Second
)

// Crawler discovers a class taxonomy by breadth-first expansion over waves.
//
// Wave k is dispatched to the worker pool as one batch; every success marks
// its URI visited, stores its record, and contributes children. Wave k+1 is
// the union of those children minus everything visited, so a class listing a
// sibling or cycling back to an ancestor is never fetched twice, while a
// class that failed in wave k is retried the moment anything rediscovers it.
// The crawl is complete when a wave comes up empty.
//
// Design decision: We use wave-synchronous BFS rather than a free-running
// queue because the barrier between waves makes the dedup logic race-free by
// construction: the registry is only consulted and updated between barriers,
// so two workers can never both decide the same URI is unvisited.
type Crawler struct {
	// fetcher resolves one URI into a record plus children.
	fetcher Fetcher

	// workers bounds fetch concurrency within a wave.
	workers int

	// delay is the per-worker politeness pause after each fetch.
	delay time.Duration

	// fetchTimeout is the deadline applied to each individual fetch.
	fetchTimeout time.Duration

	// maxClasses stops the crawl once this many classes have been
	// collected. Zero means unbounded.
	maxClasses int

	// maxWaves stops the crawl after this many waves. Zero means unbounded.
	maxWaves int

	// maxAttempts drops an identifier from future waves after it has
	// failed this many times. Zero preserves the historical behavior of
	// retrying a failing class every time it is rediscovered as a child.
	maxAttempts int

	// logger receives structured progress and failure events.
	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDelay sets the per-worker politeness delay applied after each fetch.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithFetchTimeout sets the deadline for a single fetch.
// Zero disables the deadline; only do that in tests.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.fetchTimeout = d
	}
}

// WithMaxClasses limits the total number of classes collected.
func WithMaxClasses(n int) Option {
	return func(c *Crawler) {
		c.maxClasses = n
	}
}

// WithMaxWaves limits the number of waves dispatched.
func WithMaxWaves(n int) Option {
	return func(c *Crawler) {
		c.maxWaves = n
	}
}

// WithMaxAttempts drops identifiers that keep failing after n attempts.
// Zero (the default) retries a failing identifier whenever another class
// rediscovers it as a child.
func WithMaxAttempts(n int) Option {
	return func(c *Crawler) {
		c.maxAttempts = n
	}
}

// WithLogger sets the structured logger used for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Crawler that fetches classes through the given Fetcher.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:      fetcher,
		workers:      DefaultWorkers,
		delay:        DefaultDelay,
		fetchTimeout: DefaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// failedAttempt tracks an identifier that has not yet produced a record.
type failedAttempt struct {
	attempts int
	lastErr  error
}

// Run crawls the taxonomy reachable from startURI and returns the collected
// report. startURI must already be in canonical form.
//
// Per-class failures are tolerated: the class is omitted (and reported in
// CrawlReport.Failed) while its siblings proceed. Two situations abort the
// crawl instead: the start URI itself cannot be resolved, and a duplicate
// record insert, which indicates a scheduler bug.
//
// Cancelling ctx stops the crawl between waves; fetches already in flight
// run to completion and their results are kept. The partial report is
// returned alongside ctx.Err().
func (c *Crawler) Run(ctx context.Context, startURI string) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(startURI)
	visited := NewVisited()
	results := NewResults()
	failures := make(map[string]*failedAttempt)

	wave := []string{startURI}

	c.logger.Info("starting crawl",
		"start", startURI,
		"workers", c.workers,
		"delay", c.delay,
	)

	for len(wave) > 0 {
		// Cancellation point: no new wave is dispatched once ctx is done.
		select {
		case <-ctx.Done():
			c.logger.Warn("crawl cancelled",
				"waves", report.Waves,
				"classes", results.Len(),
			)
			c.finish(report, results, failures, true)
			return report, ctx.Err()
		default:
		}

		if c.maxWaves > 0 && report.Waves >= c.maxWaves {
			report.Truncated = true
			break
		}
		var trimmed bool
		wave, trimmed = c.capWave(wave, results.Len())
		if trimmed {
			report.Truncated = true
		}
		if len(wave) == 0 {
			break
		}

		waveStart := time.Now()
		outcomes := c.dispatch(ctx, wave)
		metrics.ObserveWave(time.Since(waveStart), len(wave))

		candidates := make(map[string]struct{})
		for _, uri := range wave {
			outcome := outcomes[uri]
			if outcome.Failed() {
				entry := failures[uri]
				if entry == nil {
					entry = &failedAttempt{}
					failures[uri] = entry
				}
				entry.attempts++
				entry.lastErr = outcome.Err
				continue
			}

			visited.Mark(uri)
			if err := results.Insert(uri, outcome.Record); err != nil {
				// Invariant violation: the frontier dispatched one URI
				// twice. Never swallow this.
				return report, fmt.Errorf("crawl aborted: %w", err)
			}
			delete(failures, uri)

			for _, child := range outcome.Children {
				candidates[child] = struct{}{}
			}
		}

		// A start URI that cannot be resolved means there is nothing to
		// crawl at all; surface it as a hard error before any expansion.
		if report.Waves == 0 && results.Len() == 0 {
			err := failures[startURI].lastErr
			c.finish(report, results, failures, false)
			return report, fmt.Errorf("start class %s: %w", startURI, err)
		}

		wave = c.nextWave(candidates, visited, failures)
		report.Waves++

		c.logger.Info("wave completed",
			"wave", report.Waves,
			"classes", results.Len(),
			"pending", len(wave),
			"failed", len(failures),
		)
	}

	c.finish(report, results, failures, false)

	c.logger.Info("crawl finished",
		"classes", report.ClassCount(),
		"failed", report.FailedCount(),
		"waves", report.Waves,
		"elapsed", report.Elapsed(),
	)

	return report, nil
}

// capWave deduplicates the wave and trims it to the remaining class budget.
// The dedup guards against callers (and child lists) supplying the same URI
// twice within one wave; without it the pool would fetch redundantly. The
// second return value reports whether the budget cut anything, so the caller
// can flag the report as truncated even when the trimmed wave still runs.
func (c *Crawler) capWave(wave []string, collected int) ([]string, bool) {
	seen := make(map[string]struct{}, len(wave))
	deduped := make([]string, 0, len(wave))
	for _, uri := range wave {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		deduped = append(deduped, uri)
	}

	if c.maxClasses > 0 {
		remaining := c.maxClasses - collected
		if remaining <= 0 {
			return nil, true
		}
		if len(deduped) > remaining {
			return deduped[:remaining], true
		}
	}
	return deduped, false
}

// nextWave computes wave k+1: every discovered child not yet visited.
// Subtracting the visited registry alone is sufficient: every successful
// member of wave k is in it, so sibling and back-edge references never cause
// a refetch, while a member that FAILED in wave k stays eligible and is
// re-attempted as soon as any class lists it again — including a successful
// sibling from the same wave. Only the retry budget removes a failing
// identifier for good.
func (c *Crawler) nextWave(candidates map[string]struct{}, visited *Visited, failures map[string]*failedAttempt) []string {
	next := make([]string, 0, len(candidates))
	for uri := range candidates {
		if visited.Contains(uri) {
			continue
		}
		if c.maxAttempts > 0 {
			if entry, ok := failures[uri]; ok && entry.attempts >= c.maxAttempts {
				continue
			}
		}
		next = append(next, uri)
	}
	return next
}

// finish freezes the report: snapshot of the aggregated records, permanent
// failure list, stable ordering, end timestamp.
func (c *Crawler) finish(report *model.CrawlReport, results *Results, failures map[string]*failedAttempt, cancelled bool) {
	report.Classes = results.Snapshot()
	for uri, entry := range failures {
		report.Failed = append(report.Failed, model.FailedClass{
			URI:      uri,
			Error:    entry.lastErr.Error(),
			Attempts: entry.attempts,
		})
	}
	if cancelled {
		report.Truncated = true
	}
	report.FinishedAt = time.Now()
	report.SortClasses()
	metrics.SetClassesCollected(len(report.Classes))
}
