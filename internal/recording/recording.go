// Package recording implements the spy's optional record(path) fixture
// writer (spec §3, §4.E: Double variant semantics). It is grounded on
// the teacher's internal/recorder (LogRecording, RecordingEntry,
// base64 fallback for non-UTF-8 output), adapted from a standalone
// `record` CLI verb's side-effect into a library hook a CommandDouble
// can attach to itself.
package recording

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/cmdmox/cmdmox/internal/types"
)

// Entry is one JSONL line written for a recorded invocation.
type Entry struct {
	Timestamp string            `json:"timestamp"`
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Exit      int               `json:"exit"`
	Stdout    string            `json:"stdout"`
	Stderr    string            `json:"stderr"`
	Stdin     string            `json:"stdin,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Encoding  string            `json:"encoding,omitempty"` // "" = UTF-8 text, "base64" = raw bytes
}

// Scrubber rewrites an invocation/response pair before it is written to
// a recording, letting callers redact fixture contents. The fixed secrets
// lexicon is applied only to verification diagnostics, not to
// recordings. Nil by default: a spy's record(path) hook writes raw
// captured data unless a Scrubber is set.
type Scrubber func(types.Invocation, types.Response) (types.Invocation, types.Response)

// Recorder appends JSONL entries to a single file, one per call to
// Append, mirroring the teacher's LogRecording append-per-invocation
// behavior rather than buffering and writing once at the end.
type Recorder struct {
	path     string
	scrubber Scrubber
}

// New returns a Recorder that appends to path. scrubber may be nil.
func New(path string, scrubber Scrubber) *Recorder {
	return &Recorder{path: path, scrubber: scrubber}
}

// Append writes one Entry for inv/resp, base64-encoding stdout/stderr
// if either contains non-UTF-8 bytes (mirrors the teacher's LogRecording
// behavior; resolves the spec's open question on non-UTF-8 recording
// consistently with the ToValidUTF8 wire-boundary policy used
// elsewhere, by never lossily truncating recorded fixture data).
func (r *Recorder) Append(inv types.Invocation, resp types.Response) error {
	if r.scrubber != nil {
		inv, resp = r.scrubber(inv, resp)
	}

	entry := Entry{
		Timestamp: inv.Timestamp.Format(time.RFC3339),
		Command:   inv.Command,
		Args:      inv.Args,
		Exit:      resp.ExitCode,
		Stdout:    resp.Stdout,
		Stderr:    resp.Stderr,
		Stdin:     inv.Stdin,
		Env:       inv.Env,
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if !utf8.ValidString(resp.Stdout) || !utf8.ValidString(resp.Stderr) {
		entry.Stdout = base64.StdEncoding.EncodeToString([]byte(resp.Stdout))
		entry.Stderr = base64.StdEncoding.EncodeToString([]byte(resp.Stderr))
		entry.Encoding = "base64"
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("recording: open %s: %w", r.path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("recording: write entry: %w", err)
	}
	return nil
}

// Decode reconstructs stdout/stderr from entry, undoing any base64
// fallback encoding, for tooling that reads recordings back.
func (entry Entry) Decode() (stdout, stderr string, err error) {
	if entry.Encoding != "base64" {
		return entry.Stdout, entry.Stderr, nil
	}
	outBytes, err := base64.StdEncoding.DecodeString(entry.Stdout)
	if err != nil {
		return "", "", fmt.Errorf("recording: decode stdout: %w", err)
	}
	errBytes, err := base64.StdEncoding.DecodeString(entry.Stderr)
	if err != nil {
		return "", "", fmt.Errorf("recording: decode stderr: %w", err)
	}
	return string(outBytes), string(errBytes), nil
}
