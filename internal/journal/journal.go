// Package journal implements the bounded, ordered sequence of observed
// invocations (spec §3: "Journal"). Entries are appended in response-
// completion order, never arrival order, by design: callers append only
// once the response for an invocation has been fully determined.
package journal

import (
	"sync"

	"github.com/cmdmox/cmdmox/internal/types"
)

// Journal is a FIFO-bounded, mutex-guarded sequence of invocations.
type Journal struct {
	mu      sync.Mutex
	bound   int
	entries []types.Invocation
}

// New returns a Journal capped at bound entries (oldest evicted first
// once exceeded). A bound of 0 means unbounded.
func New(bound int) *Journal {
	return &Journal{bound: bound}
}

// Append adds inv to the journal, evicting the oldest entry first if the
// bound is exceeded.
func (j *Journal) Append(inv types.Invocation) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, inv)
	if j.bound > 0 && len(j.entries) > j.bound {
		j.entries = j.entries[len(j.entries)-j.bound:]
	}
}

// Entries returns a snapshot of the current journal contents, in
// completion order.
func (j *Journal) Entries() []types.Invocation {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]types.Invocation, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the current number of entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
