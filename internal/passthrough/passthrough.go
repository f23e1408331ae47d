// Package passthrough implements the pending-table coordinator (spec
// §4.F) that lets a launcher run the real binary on the controller's
// behalf and report the result back asynchronously. It is grounded on
// the teacher's cmd/exec.go spawn/wait sequence and
// internal/runner.ExitCodeFromError, adapted from "controller spawns
// the child itself" to "controller hands the launcher a
// PassthroughRequest and waits for a PassthroughResult".
package passthrough

import (
	"errors"
	"sync"
	"time"

	"github.com/cmdmox/cmdmox/internal/types"
)

// DefaultTTL is the default pending-entry lifetime before the sweeper
// evicts it, independent of the passthrough execution timeout handed to
// the launcher (spec §4.F: "Expired entries are swept periodically (TTL
// 300s default)").
const DefaultTTL = 300 * time.Second

// DefaultExecutionTimeout is the default wall-clock budget for the
// passthrough execution itself, sent to the launcher as
// PassthroughRequest.Timeout (spec §4.E: "default 30s").
const DefaultExecutionTimeout = 30 * time.Second

// ErrUnknownInvocation is returned by Finalize when no pending entry
// matches the given invocation ID (already finalized, swept, or never
// registered).
var ErrUnknownInvocation = errors.New("passthrough: unknown invocation id")

// pending is one outstanding passthrough request awaiting its result.
type pending struct {
	expectation *types.Expectation
	invocation  types.Invocation
	deadline    time.Time
}

// Table is the mutex-guarded pending-invocation map. A single Table is
// shared by a controller across its REPLAY phase.
type Table struct {
	mu      sync.Mutex
	entries map[string]pending
	ttl     time.Duration

	sweepOnce sync.Once
	stop      chan struct{}
}

// NewTable returns an empty pending table using DefaultTTL.
func NewTable() *Table {
	return NewTableWithTTL(DefaultTTL)
}

// NewTableWithTTL returns an empty pending table whose entries expire
// after ttl. Exposed mainly so callers (and tests) can tune the sweep
// window without waiting out DefaultTTL.
func NewTableWithTTL(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table{entries: make(map[string]pending), ttl: ttl}
}

// PrepareRequest registers inv as pending passthrough against exp and
// returns the PassthroughRequest to embed in the Response sent to the
// launcher. executionTimeout of zero uses DefaultExecutionTimeout; it
// bounds how long the launcher may spend running the real binary and is
// independent of the pending-table sweep TTL.
func (t *Table) PrepareRequest(exp *types.Expectation, inv types.Invocation, lookupPath string, extraEnv map[string]string, executionTimeout time.Duration) types.PassthroughRequest {
	if executionTimeout <= 0 {
		executionTimeout = DefaultExecutionTimeout
	}

	t.mu.Lock()
	t.entries[inv.ID] = pending{
		expectation: exp,
		invocation:  inv,
		deadline:    time.Now().Add(t.ttl),
	}
	t.mu.Unlock()

	return types.PassthroughRequest{
		InvocationID: inv.ID,
		LookupPath:   lookupPath,
		ExtraEnv:     extraEnv,
		Timeout:      executionTimeout,
	}
}

// Finalize consumes the pending entry for result.InvocationID, merges
// the real process's outcome into the recorded Invocation, and returns
// it along with the Expectation it was matched against. Callers append
// the returned Invocation to the journal themselves, so journal order
// stays "response-completion order" regardless of which package owns
// the append call.
func (t *Table) Finalize(result types.PassthroughResult) (types.Invocation, *types.Expectation, error) {
	t.mu.Lock()
	p, ok := t.entries[result.InvocationID]
	if ok {
		delete(t.entries, result.InvocationID)
	}
	t.mu.Unlock()

	if !ok {
		return types.Invocation{}, nil, ErrUnknownInvocation
	}

	inv := p.invocation
	inv.Stdout = result.Stdout
	inv.Stderr = result.Stderr
	inv.ExitCode = result.ExitCode
	return inv, p.expectation, nil
}

// Len reports the number of outstanding (not yet finalized or swept)
// passthrough requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// StartSweeper launches a background goroutine that evicts entries past
// their deadline every interval, preventing an unbounded leak when a
// launcher crashes before reporting a PassthroughResult. Safe to call at
// most once per Table; subsequent calls are no-ops. The returned stop
// function is idempotent.
func (t *Table) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultTTL
	}

	t.sweepOnce.Do(func() {
		t.stop = make(chan struct{})
		go t.sweepLoop(interval)
	})

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			if t.stop != nil {
				close(t.stop)
			}
		})
	}
}

func (t *Table) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweepExpired(time.Now())
		}
	}
}

func (t *Table) sweepExpired(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.entries {
		if now.After(p.deadline) {
			delete(t.entries, id)
		}
	}
}
