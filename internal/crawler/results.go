package crawler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bsddscan/bsddscan/internal/model"
)

// ErrDuplicateClass is returned when a record is inserted twice for the same
// URI. The frontier guarantees each URI is dispatched at most once, so a
// duplicate insert means the scheduler itself is broken; callers must treat
// it as fatal rather than ignore it.
var ErrDuplicateClass = errors.New("duplicate class record insert")

// Results collects one class record per successfully fetched URI.
// Records are owned by Results after insertion and never mutated.
type Results struct {
	mu      sync.Mutex
	classes map[string]*model.ClassRecord
}

// NewResults creates an empty result aggregator.
func NewResults() *Results {
	return &Results{classes: make(map[string]*model.ClassRecord)}
}

// Insert stores the record for uri. Inserting the same URI twice returns an
// error wrapping ErrDuplicateClass.
func (r *Results) Insert(uri string, record *model.ClassRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[uri]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, uri)
	}
	r.classes[uri] = record
	return nil
}

// Contains reports whether a record exists for uri.
func (r *Results) Contains(uri string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.classes[uri]
	return ok
}

// Len returns the number of collected records.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.classes)
}

// Snapshot returns all collected records. It is called once, after the
// frontier reaches its terminal state. Order is unspecified.
func (r *Results) Snapshot() []*model.ClassRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*model.ClassRecord, 0, len(r.classes))
	for _, record := range r.classes {
		records = append(records, record)
	}
	return records
}
