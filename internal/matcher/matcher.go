// Package matcher evaluates argument, stdin, and environment predicates
// against an observed invocation. It is grounded on the teacher's
// internal/matcher.ArgvMatch (exact argv comparison), generalized from
// "equal slices" to a full comparator catalog plus user callables, per
// the spec's with_matching_args contract.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
)

// ArgMatcher is a single-argument predicate with a display representation
// used in diagnostics (the spec requires reprs be part of the contract).
type ArgMatcher interface {
	Match(arg string) bool
	String() string
}

// funcMatcher adapts a plain func(string) bool (a user callable) into an
// ArgMatcher.
type funcMatcher struct {
	fn   func(string) bool
	repr string
}

func (f funcMatcher) Match(arg string) bool { return f.fn(arg) }
func (f funcMatcher) String() string        { return f.repr }

// Predicate wraps an arbitrary user callable as an ArgMatcher.
func Predicate(fn func(string) bool) ArgMatcher {
	return funcMatcher{fn: fn, repr: "Predicate(...)"}
}

// Any matches exactly one argument, unconditionally.
func Any() ArgMatcher {
	return funcMatcher{fn: func(string) bool { return true }, repr: "Any()"}
}

// IsA matches when arg parses as the named type ("int" or "float").
// Unknown type names never match, surfacing the mismatch via repr rather
// than panicking.
func IsA(typeName string) ArgMatcher {
	return funcMatcher{
		fn: func(arg string) bool {
			switch typeName {
			case "int":
				return isInt(arg)
			case "float":
				return isFloat(arg)
			default:
				return false
			}
		},
		repr: fmt.Sprintf("IsA(%s)", typeName),
	}
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, r := range s[start:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isFloat(s string) bool {
	if isInt(s) {
		return true
	}
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return false
	}
	return isInt(s[:dot]) && isInt("0"+s[dot+1:])
}

// Regex matches when arg matches the given regular expression pattern.
// An invalid pattern never matches (fail-closed) rather than panicking.
func Regex(pattern string) ArgMatcher {
	re, err := regexp.Compile(pattern)
	return funcMatcher{
		fn: func(arg string) bool {
			if err != nil || re == nil {
				return false
			}
			return re.MatchString(arg)
		},
		repr: fmt.Sprintf("Regex(%q)", pattern),
	}
}

// Contains matches when arg contains substr.
func Contains(substr string) ArgMatcher {
	return funcMatcher{
		fn:   func(arg string) bool { return strings.Contains(arg, substr) },
		repr: fmt.Sprintf("Contains(%q)", substr),
	}
}

// StartsWith matches when arg has the given prefix.
func StartsWith(prefix string) ArgMatcher {
	return funcMatcher{
		fn:   func(arg string) bool { return strings.HasPrefix(arg, prefix) },
		repr: fmt.Sprintf("StartsWith(%q)", prefix),
	}
}

// Exact matches a literal string.
func Exact(value string) ArgMatcher {
	return funcMatcher{
		fn:   func(arg string) bool { return arg == value },
		repr: fmt.Sprintf("%q", value),
	}
}

// MatchArgs evaluates matchers against args positionally. It reports
// arg-count mismatches distinctly from positional mismatches so
// diagnostics can show "expected N args, got M".
func MatchArgs(matchers []ArgMatcher, args []string) (ok bool, mismatchPos int, countMismatch bool) {
	if len(matchers) != len(args) {
		return false, -1, true
	}
	for i, m := range matchers {
		if !m.Match(args[i]) {
			return false, i, false
		}
	}
	return true, -1, false
}

// ReprArgs renders a slice of ArgMatcher for diagnostics, e.g.
// `("clone", Any())`.
func ReprArgs(matchers []ArgMatcher) string {
	parts := make([]string, len(matchers))
	for i, m := range matchers {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// StdinMatcher evaluates a predicate against captured stdin. A nil
// StdinMatcher means "don't care" and always matches.
type StdinMatcher interface {
	Match(stdin string) bool
	String() string
}

// ExactStdin matches stdin exactly.
func ExactStdin(value string) StdinMatcher {
	return funcMatcher{
		fn:   func(s string) bool { return s == value },
		repr: fmt.Sprintf("stdin=%q", value),
	}
}

// PredicateStdin wraps a user callable as a StdinMatcher.
func PredicateStdin(fn func(string) bool) StdinMatcher {
	return funcMatcher{fn: fn, repr: "stdin=Predicate(...)"}
}

// EnvSubsetMatch reports whether every key/value pair in want is present
// and equal in got (a subset match, per the spec's "subset-match of
// expectation env overrides against the invocation env").
func EnvSubsetMatch(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// ArgvMatch performs a strict positional comparison of two argument
// vectors, used by AssertCalledWith to check an already-matched
// invocation's exact args independently of whatever ArgMatchers the
// double was originally declared with.
func ArgvMatch(expected, received []string) bool {
	if len(expected) != len(received) {
		return false
	}
	for i := range expected {
		if expected[i] != received[i] {
			return false
		}
	}
	return true
}
