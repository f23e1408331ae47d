// Package ipc implements the bidirectional, framed JSON channel that
// couples short-lived launcher processes to the long-lived controller
// (Component C). The wire format is identical on every platform: a
// 4-byte big-endian length prefix followed by a UTF-8 JSON payload,
// grounded on nayrosk-claude-cowork-service/pipe/protocol.go. Only the
// rendezvous mechanism differs (Unix domain socket vs. Windows named
// pipe), behind the Endpoint interface in endpoint.go.
package ipc

import "strings"

// Message kinds, per the wire protocol in the spec's External Interfaces
// section.
const (
	KindInvocation        = "invocation"
	KindResponse          = "response"
	KindPassthroughResult = "passthrough-result"
)

// Message is the envelope for every frame exchanged over the transport.
// Only the fields relevant to Kind are populated; the rest are left at
// their zero value and omitted from the wire via `omitempty`.
type Message struct {
	Kind string `json:"kind"`

	// Invocation fields (launcher -> server, Kind == invocation).
	InvocationID string            `json:"invocation_id,omitempty"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Stdin        string            `json:"stdin,omitempty"`
	Env          map[string]string `json:"env,omitempty"`

	// Response fields (server -> launcher, Kind == response, static form).
	Stdout   string            `json:"stdout,omitempty"`
	Stderr   string            `json:"stderr,omitempty"`
	ExitCode int               `json:"exit_code"`
	EnvOut   map[string]string `json:"env_overrides,omitempty"`

	// Passthrough request (server -> launcher, Kind == response, carried
	// instead of the static fields above).
	Passthrough *PassthroughRequest `json:"passthrough,omitempty"`
}

// PassthroughRequest directs the launcher to execute a real binary and
// report back, rather than applying a canned response.
type PassthroughRequest struct {
	InvocationID   string            `json:"invocation_id"`
	LookupPath     string            `json:"lookup_path"`
	ExtraEnv       map[string]string `json:"extra_env,omitempty"`
	TimeoutSeconds float64           `json:"timeout_seconds"`
}

// sanitizeUTF8 replaces invalid UTF-8 byte sequences, per the spec's
// unconditional "UTF-8 with replacement at the wire boundary" mandate
// (see SPEC_FULL.md §9 open-question resolution).
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// Sanitize returns a copy of m with every string field passed through
// sanitizeUTF8. It must be called before encoding a message for the wire
// and is safe to call again after decoding (idempotent).
func (m Message) Sanitize() Message {
	out := m
	out.Stdin = sanitizeUTF8(m.Stdin)
	out.Stdout = sanitizeUTF8(m.Stdout)
	out.Stderr = sanitizeUTF8(m.Stderr)
	if m.Env != nil {
		out.Env = sanitizeMap(m.Env)
	}
	if m.EnvOut != nil {
		out.EnvOut = sanitizeMap(m.EnvOut)
	}
	if m.Passthrough != nil {
		pt := *m.Passthrough
		pt.LookupPath = sanitizeUTF8(pt.LookupPath)
		if pt.ExtraEnv != nil {
			pt.ExtraEnv = sanitizeMap(pt.ExtraEnv)
		}
		out.Passthrough = &pt
	}
	return out
}

func sanitizeMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[sanitizeUTF8(k)] = sanitizeUTF8(v)
	}
	return out
}
