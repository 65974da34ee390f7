// Package metrics exposes Prometheus metrics for crawl progress.
//
// Metrics are registered on the default registry and served only when the
// user opts in with --metrics-addr; a crawl without the flag pays nothing
// beyond counter increments.
package metrics
