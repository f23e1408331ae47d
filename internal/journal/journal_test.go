package journal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmdmox/cmdmox/internal/journal"
	"github.com/cmdmox/cmdmox/internal/types"
)

func TestAppendAndEntries(t *testing.T) {
	j := journal.New(0)
	j.Append(types.Invocation{Command: "alpha"})
	j.Append(types.Invocation{Command: "beta"})

	entries := j.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Command)
	assert.Equal(t, "beta", entries[1].Command)
}

func TestBoundedJournalEvictsOldestFIFO(t *testing.T) {
	j := journal.New(2)
	j.Append(types.Invocation{Command: "alpha"})
	j.Append(types.Invocation{Command: "beta"})
	j.Append(types.Invocation{Command: "gamma"})

	entries := j.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "beta", entries[0].Command)
	assert.Equal(t, "gamma", entries[1].Command)
}

func TestEntriesReturnsSnapshotNotSharedSlice(t *testing.T) {
	j := journal.New(0)
	j.Append(types.Invocation{Command: "alpha"})
	entries := j.Entries()
	entries[0].Command = "mutated"
	assert.Equal(t, "alpha", j.Entries()[0].Command)
}
