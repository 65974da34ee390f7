package crawler

import "sync"

// Visited is the authoritative record of class URIs that have been
// successfully processed and must never be fetched again. It only grows.
//
// The crawler marks URIs after the wave barrier, so within a single crawl
// there is no check-then-act window between waves. The mutex still matters:
// outcomes from concurrent fetch completions are folded in by whoever owns
// the registry, and Stats/Contains may be called from other goroutines.
type Visited struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewVisited creates an empty visited registry.
func NewVisited() *Visited {
	return &Visited{set: make(map[string]struct{})}
}

// Mark records uri as visited. Marking an already-visited URI is a no-op.
func (v *Visited) Mark(uri string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.set[uri] = struct{}{}
}

// Contains reports whether uri has been visited.
func (v *Visited) Contains(uri string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.set[uri]
	return ok
}

// Len returns the number of visited URIs.
func (v *Visited) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.set)
}
