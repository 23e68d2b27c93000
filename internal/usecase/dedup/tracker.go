package dedup

import (
	"sync"

	"github.com/kailas-cloud/aivis/internal/domain/query"
)

// Tracker remembers which task identities a run has already taken on.
// One tracker per run; safe for the concurrent tasks of that run.
type Tracker struct {
	mu   sync.Mutex
	seen map[query.Identity]struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{seen: make(map[query.Identity]struct{})}
}

// ShouldProcess reports whether id has not been marked yet.
func (t *Tracker) ShouldProcess(id query.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return !ok
}

// MarkProcessed records id.
func (t *Tracker) MarkProcessed(id query.Identity) {
	t.mu.Lock()
	t.seen[id] = struct{}{}
	t.mu.Unlock()
}

// Claim marks id and reports whether this call was the first to do so.
// Two tasks racing on the same identity get exactly one true.
func (t *Tracker) Claim(id query.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}

// Len returns the number of distinct identities seen.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
