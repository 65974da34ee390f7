package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bsddscan/bsddscan/internal/metrics"
)

// dispatch fetches every URI in the wave and returns one outcome per URI.
// It is the synchronization barrier between waves: it returns only after
// every fetch has resolved, successfully or not.
//
// At most c.workers fetches run concurrently. A failing fetch never cancels
// its siblings; the error is captured in the outcome and the worker moves on.
// The politeness delay is applied per worker after each fetch, so the
// sustained request rate is bounded by roughly workers/delay, not 1/delay.
//
// Cancelling ctx does not preempt the wave: fetches already dispatched run
// to completion under their own per-fetch deadline and their results count.
// Cancellation is honored at the wave barrier in Run; only the politeness
// delay is cut short here so a cancelled crawl drains without idle sleeps.
func (c *Crawler) dispatch(ctx context.Context, wave []string) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(wave))
	var mu sync.Mutex

	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, uri := range wave {
		g.Go(func() error {
			outcome := c.fetchOne(fetchCtx, uri)

			mu.Lock()
			outcomes[uri] = outcome
			mu.Unlock()

			// Politeness delay before this worker slot is reused.
			if c.delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(c.delay):
				}
			}

			// Fetch errors are carried in the outcome, never returned to
			// the group: one failing class must not disturb its siblings,
			// and the Wait below stays a pure barrier.
			return nil
		})
	}

	// Workers only return nil, so this cannot fail; the wait itself is the
	// wave barrier.
	_ = g.Wait() //nolint:errcheck // See above.

	return outcomes
}

// fetchOne runs a single fetch with the per-fetch deadline applied.
// Without the deadline one slow identifier could stall the whole wave
// barrier, so a timeout of zero is only intended for tests.
func (c *Crawler) fetchOne(ctx context.Context, uri string) Outcome {
	fctx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	record, children, err := c.fetcher.Fetch(fctx, uri)
	metrics.ObserveFetch(time.Since(start), err == nil)

	if err != nil {
		c.logger.Warn("fetch failed",
			"uri", uri,
			"error", err,
		)
		return Outcome{URI: uri, Err: err}
	}

	c.logger.Debug("fetch completed",
		"uri", uri,
		"children", len(children),
	)
	return Outcome{URI: uri, Record: record, Children: children}
}
