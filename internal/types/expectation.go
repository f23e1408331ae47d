package types

import (
	"fmt"

	"github.com/cmdmox/cmdmox/internal/matcher"
)

// CallCount expresses the expected invocation count for an Expectation.
// Set is true only once Times was called, on a double of any kind; when
// it is unset, a mock requires exactly one call and stubs and spies are
// never count-checked.
type CallCount struct {
	Set   bool
	Exact int
}

// Expectation is a single declaration of how a command should be invoked
// and how to respond (spec §3). A CommandDouble (in the root package) owns
// exactly one Expectation, tagged by Kind.
type Expectation struct {
	Command string

	// ArgMatchers is nil when no argument constraint was declared
	// (matches any args, including zero). When With Args was used, each
	// element is matcher.Exact(v); With MatchingArgs supplies arbitrary
	// ArgMatchers.
	ArgMatchers []matcher.ArgMatcher

	StdinMatcher matcher.StdinMatcher
	EnvOverrides map[string]string

	StaticResponse *Response
	Handler        Handler

	Count CallCount
	Order Order
	Kind  Kind

	Passthrough     bool
	RecordingTarget string // non-empty once record(path) was called

	// DeclarationIndex is the registration order, used to break ties
	// between otherwise-equal candidates and to report ordered-sequence
	// diagnostics.
	DeclarationIndex int
}

// ArgsRepr renders the declared argument matchers for diagnostics.
func (e *Expectation) ArgsRepr() string {
	if e.ArgMatchers == nil {
		return "(any args)"
	}
	return matcher.ReprArgs(e.ArgMatchers)
}

// Matches reports whether inv satisfies every predicate declared on e,
// plus structured details on why not (used by the unexpected-invocation
// diagnostic).
func (e *Expectation) Matches(inv Invocation) (ok bool, reason string) {
	if e.Command != inv.Command {
		return false, "command mismatch"
	}
	if e.ArgMatchers != nil {
		matchOK, pos, countMismatch := matcher.MatchArgs(e.ArgMatchers, inv.Args)
		if countMismatch {
			return false, "argument count mismatch"
		}
		if !matchOK {
			return false, fmt.Sprintf("argument mismatch at position %d", pos)
		}
	}
	if e.StdinMatcher != nil && !e.StdinMatcher.Match(inv.Stdin) {
		return false, "stdin mismatch"
	}
	if !matcher.EnvSubsetMatch(e.EnvOverrides, inv.Env) {
		return false, "env subset mismatch"
	}
	return true, ""
}
