package crawler

import (
	"context"

	"github.com/bsddscan/bsddscan/internal/model"
)

// Fetcher turns one class URI into a class record and the URIs of its
// children. It is the only way the crawler talks to the outside world.
//
// Implementations must be safe for concurrent use, must return child URIs
// already normalized to canonical form (the crawler compares identifiers by
// exact string match), and must not keep state about what has been visited.
// Whether the data comes from a REST API, an HTML scrape, or a test stub is
// invisible to the crawler.
type Fetcher interface {
	// Fetch retrieves the record for uri. The returned children are the
	// canonical URIs of the direct child classes; they may contain
	// duplicates, which the crawler removes before dispatch.
	Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error)
}

// Outcome is the result of fetching a single class URI.
// Exactly one of Record or Err is set.
type Outcome struct {
	// URI is the identifier this outcome belongs to.
	URI string

	// Record is the fetched class record. Nil when the fetch failed.
	Record *model.ClassRecord

	// Children are the canonical child URIs discovered by the fetch.
	Children []string

	// Err is the fetch error, nil on success. Per-class errors never
	// propagate past the worker pool as anything other than this value.
	Err error
}

// Failed reports whether the fetch produced an error instead of a record.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
