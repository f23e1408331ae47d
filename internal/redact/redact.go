// Package redact masks sensitive environment values in diagnostic output.
// It replaces the teacher's glob deny-list (internal/envfilter) with the
// spec's fixed secrets lexicon: any env var whose name contains one of a
// short list of substrings is masked before it reaches an error message.
package redact

import "strings"

// lexicon lists case-insensitive substrings that mark an env var name as
// sensitive. Matching any one of these masks the value in diagnostics.
var lexicon = []string{
	"KEY",
	"TOKEN",
	"SECRET",
	"PASSWORD",
	"CREDENTIALS",
	"PASS",
	"PWD",
}

const masked = "***"

// IsSensitive reports whether name matches the secrets lexicon.
func IsSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, word := range lexicon {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}

// Env returns a copy of env with every sensitive value replaced by "***".
// Keys are never altered; only the sensitive values are masked.
func Env(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if IsSensitive(k) {
			out[k] = masked
		} else {
			out[k] = v
		}
	}
	return out
}

// Value returns the masked placeholder if name is sensitive, else value
// unchanged. Useful when redacting a single key/value pair inline.
func Value(name, value string) string {
	if IsSensitive(name) {
		return masked
	}
	return value
}
