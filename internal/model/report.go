package model

import (
	"sort"
	"time"
)

// CrawlReport is the complete result of one crawl run.
// It wraps the collected class records with run metadata so report writers
// and the database layer have a single structure to work from.
type CrawlReport struct {
	// StartURI is the canonical URI the crawl was seeded with.
	StartURI string `json:"start_uri"`

	// Classes holds one record per successfully fetched class.
	// Order is not significant; writers that need determinism sort by URL.
	Classes []*ClassRecord `json:"classes"`

	// Failed lists identifiers that failed at least once and were never
	// recovered by a later successful fetch. These classes are absent from
	// Classes and represent a documented gap in the output.
	Failed []FailedClass `json:"failed,omitempty"`

	// Waves is the number of waves the crawl ran before the frontier
	// emptied (or a guard stopped it).
	Waves int `json:"waves"`

	// Truncated is true when a max-classes or max-waves guard stopped the
	// crawl before the frontier was exhausted.
	Truncated bool `json:"truncated,omitempty"`

	// StartedAt and FinishedAt bound the crawl run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// FailedClass records a class URI that could not be fetched.
type FailedClass struct {
	// URI is the canonical identifier that failed.
	URI string `json:"uri"`

	// Error is the message from the last failed attempt.
	Error string `json:"error"`

	// Attempts counts how many times the crawler tried this identifier.
	Attempts int `json:"attempts"`
}

// NewCrawlReport creates an empty report for the given start URI with the
// start time set to now.
func NewCrawlReport(startURI string) *CrawlReport {
	return &CrawlReport{
		StartURI:  startURI,
		Classes:   make([]*ClassRecord, 0),
		StartedAt: time.Now(),
	}
}

// ClassCount returns the number of successfully collected classes.
func (r *CrawlReport) ClassCount() int {
	return len(r.Classes)
}

// FailedCount returns the number of permanently failed identifiers.
func (r *CrawlReport) FailedCount() int {
	return len(r.Failed)
}

// Elapsed returns the wall-clock duration of the crawl.
func (r *CrawlReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SortClasses orders the class records by URL so that output documents are
// stable regardless of wave completion order.
func (r *CrawlReport) SortClasses() {
	sort.Slice(r.Classes, func(i, j int) bool {
		return r.Classes[i].URL < r.Classes[j].URL
	})
	sort.Slice(r.Failed, func(i, j int) bool {
		return r.Failed[i].URI < r.Failed[j].URI
	})
}
