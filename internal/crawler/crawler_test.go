package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsddscan/bsddscan/internal/model"
)

// stubFetcher serves a fixed class graph from memory. Fetch failures can be
// injected per URI, either a fixed number of times or permanently.
type stubFetcher struct {
	mu    sync.Mutex
	graph map[string][]string
	// failures maps a URI to the number of times Fetch should fail before
	// succeeding. A negative count fails forever.
	failures map[string]int
	calls    map[string]int

	latency time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newStubFetcher(graph map[string][]string) *stubFetcher {
	return &stubFetcher{
		graph:    graph,
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (s *stubFetcher) Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(s.latency):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[uri]++

	if remaining, ok := s.failures[uri]; ok && remaining != 0 {
		if remaining > 0 {
			s.failures[uri] = remaining - 1
		}
		return nil, nil, fmt.Errorf("injected failure for %s", uri)
	}

	children, ok := s.graph[uri]
	if !ok {
		return nil, nil, fmt.Errorf("unknown class %s", uri)
	}
	record := &model.ClassRecord{
		ClassName:    uri,
		Code:         uri,
		URL:          uri,
		ChildClasses: children,
	}
	return record, children, nil
}

func (s *stubFetcher) callCount(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[uri]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCrawler(f Fetcher, opts ...Option) *Crawler {
	base := []Option{
		WithDelay(0),
		WithFetchTimeout(0),
		WithLogger(discardLogger()),
	}
	return New(f, append(base, opts...)...)
}

func collectedURIs(report *model.CrawlReport) []string {
	uris := make([]string, 0, len(report.Classes))
	for _, class := range report.Classes {
		uris = append(uris, class.URL)
	}
	sort.Strings(uris)
	return uris
}

func assertURIs(t *testing.T, report *model.CrawlReport, want []string) {
	t.Helper()
	got := collectedURIs(report)
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	if len(got) != len(sorted) {
		t.Fatalf("collected %v, want %v", got, sorted)
	}
	for i := range got {
		if got[i] != sorted[i] {
			t.Fatalf("collected %v, want %v", got, sorted)
		}
	}
}

func TestCrawlerRun(t *testing.T) {
	t.Parallel()

	t.Run("single class without children", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{
			"root": {},
		})
		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root"})
		if report.Waves != 1 {
			t.Errorf("Waves = %d, want 1", report.Waves)
		}
		if report.FailedCount() != 0 {
			t.Errorf("FailedCount() = %d, want 0", report.FailedCount())
		}
	})

	t.Run("cycle back to the start terminates", func(t *testing.T) {
		t.Parallel()

		// root -> a, b; a -> c; c -> root. The back edge must not cause a
		// second fetch of root.
		fetcher := newStubFetcher(map[string][]string{
			"root": {"a", "b"},
			"a":    {"c"},
			"b":    {},
			"c":    {"root"},
		})
		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "a", "b", "c"})
		for _, uri := range []string{"root", "a", "b", "c"} {
			if got := fetcher.callCount(uri); got != 1 {
				t.Errorf("fetch count for %s = %d, want 1", uri, got)
			}
		}
		if report.Waves != 3 {
			t.Errorf("Waves = %d, want 3", report.Waves)
		}
	})

	t.Run("duplicate child across siblings fetched once", func(t *testing.T) {
		t.Parallel()

		// a and b both list shared as a child in the same wave.
		fetcher := newStubFetcher(map[string][]string{
			"root":   {"a", "b"},
			"a":      {"shared"},
			"b":      {"shared"},
			"shared": {},
		})
		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "a", "b", "shared"})
		if got := fetcher.callCount("shared"); got != 1 {
			t.Errorf("fetch count for shared = %d, want 1", got)
		}
	})

	t.Run("sibling listing an in-wave uri does not refetch it", func(t *testing.T) {
		t.Parallel()

		// a and b are fetched in the same wave; a lists b as a child.
		// b must not reappear in the next wave.
		fetcher := newStubFetcher(map[string][]string{
			"root": {"a", "b"},
			"a":    {"b"},
			"b":    {},
		})
		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "a", "b"})
		if got := fetcher.callCount("b"); got != 1 {
			t.Errorf("fetch count for b = %d, want 1", got)
		}
		if report.Waves != 2 {
			t.Errorf("Waves = %d, want 2", report.Waves)
		}
	})

	t.Run("failed class retried when rediscovered later", func(t *testing.T) {
		t.Parallel()

		// flaky fails once in wave 1; slow's children rediscover it in
		// wave 2, where the retry succeeds.
		fetcher := newStubFetcher(map[string][]string{
			"root":  {"flaky", "slow"},
			"flaky": {},
			"slow":  {"deep"},
			"deep":  {"flaky"},
		})
		fetcher.failures["flaky"] = 1

		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "flaky", "slow", "deep"})
		if got := fetcher.callCount("flaky"); got != 2 {
			t.Errorf("fetch count for flaky = %d, want 2", got)
		}
		if report.FailedCount() != 0 {
			t.Errorf("FailedCount() = %d, want 0 after recovery", report.FailedCount())
		}
	})

	t.Run("failed class retried when a sibling in the same wave lists it", func(t *testing.T) {
		t.Parallel()

		// flaky and sib are fetched in the same wave; flaky fails while
		// sib succeeds and lists flaky as a child. The rediscovery must
		// put flaky into the very next wave: only successes are visited,
		// so a failed wave member stays eligible.
		fetcher := newStubFetcher(map[string][]string{
			"root":  {"flaky", "sib"},
			"flaky": {},
			"sib":   {"flaky"},
		})
		fetcher.failures["flaky"] = 1

		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "flaky", "sib"})
		if got := fetcher.callCount("flaky"); got != 2 {
			t.Errorf("fetch count for flaky = %d, want 2 (retry in the next wave)", got)
		}
		if report.FailedCount() != 0 {
			t.Errorf("FailedCount() = %d, want 0 after recovery", report.FailedCount())
		}
	})

	t.Run("permanent failure reported and omitted", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{
			"root":   {"ok", "broken"},
			"ok":     {},
			"broken": {},
		})
		fetcher.failures["broken"] = -1

		report, err := newTestCrawler(fetcher).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "ok"})
		if report.FailedCount() != 1 {
			t.Fatalf("FailedCount() = %d, want 1", report.FailedCount())
		}
		failed := report.Failed[0]
		if failed.URI != "broken" {
			t.Errorf("Failed[0].URI = %q, want %q", failed.URI, "broken")
		}
		if failed.Attempts != 1 {
			t.Errorf("Failed[0].Attempts = %d, want 1", failed.Attempts)
		}
		if failed.Error == "" {
			t.Error("Failed[0].Error is empty, want the fetch error message")
		}
	})

	t.Run("unresolvable start uri is a hard error", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{})
		report, err := newTestCrawler(fetcher).Run(context.Background(), "missing")
		if err == nil {
			t.Fatal("Run() error = nil, want start class error")
		}
		if report.ClassCount() != 0 {
			t.Errorf("ClassCount() = %d, want 0", report.ClassCount())
		}
		if report.FailedCount() != 1 {
			t.Errorf("FailedCount() = %d, want 1", report.FailedCount())
		}
	})

	t.Run("max attempts drops repeat offenders", func(t *testing.T) {
		t.Parallel()

		// Both a and b keep rediscovering broken; with maxAttempts=2 the
		// third rediscovery must not dispatch it again.
		fetcher := newStubFetcher(map[string][]string{
			"root":   {"broken", "a"},
			"a":      {"broken", "b"},
			"b":      {"broken"},
			"broken": {},
		})
		fetcher.failures["broken"] = -1

		report, err := newTestCrawler(fetcher, WithMaxAttempts(2)).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "a", "b"})
		if got := fetcher.callCount("broken"); got != 2 {
			t.Errorf("fetch count for broken = %d, want 2", got)
		}
		if report.FailedCount() != 1 {
			t.Fatalf("FailedCount() = %d, want 1", report.FailedCount())
		}
		if report.Failed[0].Attempts != 2 {
			t.Errorf("Failed[0].Attempts = %d, want 2", report.Failed[0].Attempts)
		}
	})

	t.Run("max classes truncates the crawl", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{
			"root": {"a", "b", "c"},
			"a":    {},
			"b":    {},
			"c":    {},
		})
		report, err := newTestCrawler(fetcher, WithMaxClasses(2)).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if report.ClassCount() != 2 {
			t.Errorf("ClassCount() = %d, want 2", report.ClassCount())
		}
		if !report.Truncated {
			t.Error("Truncated = false, want true")
		}
	})

	t.Run("max waves truncates the crawl", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{
			"root": {"a"},
			"a":    {"b"},
			"b":    {},
		})
		report, err := newTestCrawler(fetcher, WithMaxWaves(2)).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertURIs(t, report, []string{"root", "a"})
		if report.Waves != 2 {
			t.Errorf("Waves = %d, want 2", report.Waves)
		}
		if !report.Truncated {
			t.Error("Truncated = false, want true")
		}
	})

	t.Run("cancellation keeps the partial report", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		fetcher := &cancellingFetcher{
			stub: newStubFetcher(map[string][]string{
				"root": {"a"},
				"a":    {"b"},
				"b":    {},
			}),
			cancel: cancel,
		}

		report, err := newTestCrawler(fetcher).Run(ctx, "root")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
		assertURIs(t, report, []string{"root"})
		if !report.Truncated {
			t.Error("Truncated = false, want true after cancellation")
		}
	})

	t.Run("cancellation lets in-flight fetches finish", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		fetcher := &midWaveCancelFetcher{
			stub: newStubFetcher(map[string][]string{
				"root":    {"trigger", "slow"},
				"trigger": {},
				"slow":    {"deep"},
				"deep":    {},
			}),
			cancel: cancel,
		}

		report, err := newTestCrawler(fetcher).Run(ctx, "root")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}

		// The cancel fired while slow was still in flight; its fetch must
		// run to completion and its record must be kept. Only deep, due in
		// the following wave, is dropped.
		assertURIs(t, report, []string{"root", "trigger", "slow"})
		if report.FailedCount() != 0 {
			t.Errorf("FailedCount() = %d, want 0: in-flight fetches must not be preempted", report.FailedCount())
		}
		if !report.Truncated {
			t.Error("Truncated = false, want true after cancellation")
		}
	})

	t.Run("worker pool bounds concurrency", func(t *testing.T) {
		t.Parallel()

		graph := map[string][]string{"root": nil}
		children := make([]string, 6)
		for i := range children {
			children[i] = fmt.Sprintf("child-%d", i)
			graph[children[i]] = []string{}
		}
		graph["root"] = children

		fetcher := newStubFetcher(graph)
		fetcher.latency = 20 * time.Millisecond

		_, err := newTestCrawler(fetcher, WithWorkers(2)).Run(context.Background(), "root")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := fetcher.maxInFlight.Load(); got > 2 {
			t.Errorf("max in-flight fetches = %d, want at most 2", got)
		}
	})

	t.Run("fetch timeout bounds a stalled fetch", func(t *testing.T) {
		t.Parallel()

		fetcher := newStubFetcher(map[string][]string{
			"root": {},
		})
		fetcher.latency = time.Second

		crawler := newTestCrawler(fetcher, WithFetchTimeout(10*time.Millisecond))
		report, err := crawler.Run(context.Background(), "root")
		if err == nil {
			t.Fatal("Run() error = nil, want deadline error for the start class")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
		}
		if report.ClassCount() != 0 {
			t.Errorf("ClassCount() = %d, want 0", report.ClassCount())
		}
	})
}

// cancellingFetcher cancels the crawl context after the first successful
// fetch, then delegates to the wrapped stub.
type cancellingFetcher struct {
	stub   *stubFetcher
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingFetcher) Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error) {
	record, children, err := c.stub.Fetch(ctx, uri)
	if err == nil {
		c.once.Do(c.cancel)
	}
	return record, children, err
}

// midWaveCancelFetcher cancels the crawl context when it fetches the trigger
// URI and makes the slow URI sensitive to fetch-context cancellation, so an
// in-flight fetch that gets preempted shows up as a failure.
type midWaveCancelFetcher struct {
	stub   *stubFetcher
	cancel context.CancelFunc
}

func (f *midWaveCancelFetcher) Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error) {
	switch uri {
	case "trigger":
		f.cancel()
	case "slow":
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
	}
	return f.stub.Fetch(ctx, uri)
}

func TestCrawlerWaveTiming(t *testing.T) {
	t.Parallel()

	// Three equally slow classes in one wave with two workers need at least
	// two full fetch rounds.
	const fetchTime = 30 * time.Millisecond

	graph := map[string][]string{
		"root": {"a", "b", "c"},
		"a":    {},
		"b":    {},
		"c":    {},
	}
	fetcher := newStubFetcher(graph)
	fetcher.latency = fetchTime

	start := time.Now()
	_, err := newTestCrawler(fetcher, WithWorkers(2)).Run(context.Background(), "root")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Wave 0 is one fetch, wave 1 is ceil(3/2) = 2 rounds.
	if elapsed := time.Since(start); elapsed < 3*fetchTime {
		t.Errorf("crawl finished in %v, want at least %v with 2 workers", elapsed, 3*fetchTime)
	}
}
