package cmdmox

import "github.com/cmdmox/cmdmox/internal/matcher"

// ArgMatcher is the comparator type accepted by
// CommandDouble.WithMatchingArgs: Any(), IsA(typeName), Regex(pattern),
// Contains(substr), StartsWith(prefix), Predicate(fn), or Exact(value).
type ArgMatcher = matcher.ArgMatcher

// Any matches exactly one argument of any value.
func Any() ArgMatcher { return matcher.Any() }

// IsA matches one argument parseable as typeName ("int" or "float").
func IsA(typeName string) ArgMatcher { return matcher.IsA(typeName) }

// Regex matches one argument against a compiled regular expression.
// An invalid pattern produces a matcher that never matches, surfaced
// as a verification-time mismatch rather than a panic at declaration
// time.
func Regex(pattern string) ArgMatcher { return matcher.Regex(pattern) }

// Contains matches one argument containing substr.
func Contains(substr string) ArgMatcher { return matcher.Contains(substr) }

// StartsWith matches one argument with the given prefix.
func StartsWith(prefix string) ArgMatcher { return matcher.StartsWith(prefix) }

// Predicate wraps an arbitrary string predicate as an ArgMatcher.
func Predicate(fn func(string) bool) ArgMatcher { return matcher.Predicate(fn) }

// Exact matches one argument equal to value.
func Exact(value string) ArgMatcher { return matcher.Exact(value) }
