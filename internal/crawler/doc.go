// Package crawler implements the wave-synchronous frontier crawler at the
// heart of bsddscan.
//
// # Architecture
//
//   - Crawler: the frontier manager. Seeds wave 0 with the start URI,
//     dispatches each wave, and builds the next wave from newly discovered
//     children minus everything already visited.
//   - dispatch: the bounded worker pool. Runs Fetcher calls concurrently
//     with a per-worker politeness delay and acts as the barrier that
//     resolves a whole wave before the next one starts.
//   - Visited: the registry of URIs that must never be fetched again.
//   - Results: the aggregator holding exactly one record per fetched URI.
//
// # Guarantees
//
// A URI appears in the final result at most once; the visited registry only
// grows; a failed URI is never marked visited, so it is re-attempted if a
// later successful class lists it as a child. Completion order within a wave
// does not affect the output set, so a deterministic Fetcher yields a
// deterministic crawl.
//
// Design decision: We implement the crawl loop ourselves rather than using a
// crawling framework because the graph here is an API-backed taxonomy, not a
// website: there are no URL patterns, robots rules, or page heuristics, and
// the wave barrier semantics are the whole point.
package crawler
