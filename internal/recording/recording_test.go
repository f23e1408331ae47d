package recording_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox/internal/recording"
	"github.com/cmdmox/cmdmox/internal/types"
)

func readLines(t *testing.T, path string) []recording.Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []recording.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e recording.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestAppendWritesJSONLEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	r := recording.New(path, nil)

	inv := types.Invocation{
		Command:   "git",
		Args:      []string{"status"},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	resp := types.Response{Stdout: "clean", ExitCode: 0}

	require.NoError(t, r.Append(inv, resp))

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "git", entries[0].Command)
	assert.Equal(t, "clean", entries[0].Stdout)
	assert.Empty(t, entries[0].Encoding)
}

func TestAppendAccumulatesMultipleEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	r := recording.New(path, nil)

	require.NoError(t, r.Append(types.Invocation{Command: "a"}, types.Response{}))
	require.NoError(t, r.Append(types.Invocation{Command: "b"}, types.Response{}))

	entries := readLines(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Command)
	assert.Equal(t, "b", entries[1].Command)
}

func TestAppendBase64EncodesNonUTF8Output(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	r := recording.New(path, nil)

	invalid := string([]byte{0xff, 0xfe, 0x00})
	require.NoError(t, r.Append(types.Invocation{Command: "x"}, types.Response{Stdout: invalid}))

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "base64", entries[0].Encoding)

	stdout, _, err := entries[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, invalid, stdout)
}

func TestAppendAppliesScrubber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	scrub := func(inv types.Invocation, resp types.Response) (types.Invocation, types.Response) {
		resp.Stdout = "scrubbed"
		return inv, resp
	}
	r := recording.New(path, scrub)

	require.NoError(t, r.Append(types.Invocation{Command: "git"}, types.Response{Stdout: "secret"}))

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "scrubbed", entries[0].Stdout)
}

func TestDecodePassesThroughPlainText(t *testing.T) {
	e := recording.Entry{Stdout: "hello", Stderr: "world"}
	stdout, stderr, err := e.Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello", stdout)
	assert.Equal(t, "world", stderr)
}
