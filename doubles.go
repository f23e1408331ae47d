package cmdmox

import (
	"github.com/cmdmox/cmdmox/internal/matcher"
	"github.com/cmdmox/cmdmox/internal/recording"
	"github.com/cmdmox/cmdmox/internal/types"
)

// CommandDouble is a single declared double for a command, returned by
// Controller.Mock/Stub/Spy and configured with its fluent With*/Returns/
// Runs methods before Replay. Every method mutates and returns the same
// value, so calls chain: c.Mock("git").WithArgs("push").Returns(...).
type CommandDouble struct {
	controller *Controller
	exp        *types.Expectation
	recorder   *recording.Recorder
}

// Command returns the command name this double was declared for.
func (d *CommandDouble) Command() string { return d.exp.Command }

// WithArgs constrains the double to invocations whose args equal exactly
// args, position for position.
func (d *CommandDouble) WithArgs(args ...string) *CommandDouble {
	matchers := make([]matcher.ArgMatcher, len(args))
	for i, a := range args {
		matchers[i] = matcher.Exact(a)
	}
	d.exp.ArgMatchers = matchers
	return d
}

// WithMatchingArgs constrains the double using an arbitrary per-position
// comparator, e.g. c.Mock("curl").WithMatchingArgs(cmdmox.Any(),
// cmdmox.Regex(`^https://`)).
func (d *CommandDouble) WithMatchingArgs(matchers ...ArgMatcher) *CommandDouble {
	d.exp.ArgMatchers = matchers
	return d
}

// WithStdin constrains the double to invocations whose captured stdin
// equals value exactly.
func (d *CommandDouble) WithStdin(value string) *CommandDouble {
	d.exp.StdinMatcher = matcher.ExactStdin(value)
	return d
}

// WithStdinMatching constrains the double using an arbitrary stdin
// predicate.
func (d *CommandDouble) WithStdinMatching(fn func(string) bool) *CommandDouble {
	d.exp.StdinMatcher = matcher.PredicateStdin(fn)
	return d
}

// WithEnv constrains the double to invocations whose environment
// contains name=value (a subset match: other env vars are ignored).
func (d *CommandDouble) WithEnv(name, value string) *CommandDouble {
	if d.exp.EnvOverrides == nil {
		d.exp.EnvOverrides = make(map[string]string)
	}
	d.exp.EnvOverrides[name] = value
	return d
}

// Returns declares a static response for matching invocations.
func (d *CommandDouble) Returns(stdout, stderr string, exitCode int) *CommandDouble {
	d.exp.StaticResponse = &types.Response{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	d.exp.Handler = nil
	return d
}

// Runs declares a dynamic handler computing the response for matching
// invocations, overriding any prior Returns.
func (d *CommandDouble) Runs(h Handler) *CommandDouble {
	d.exp.Handler = h
	d.exp.StaticResponse = nil
	return d
}

// Times declares the exact number of calls this double must receive,
// checked during Verify regardless of Kind (stubs are otherwise never
// checked for under-calling).
func (d *CommandDouble) Times(n int) *CommandDouble {
	d.exp.Count = types.CallCount{Set: true, Exact: n}
	return d
}

// InOrder places this double in the controller's ordered sequence: all
// in-order doubles, whatever their command name, must first be observed
// in declaration order relative to one another.
func (d *CommandDouble) InOrder() *CommandDouble {
	d.exp.Order = types.OrderInOrder
	return d
}

// AnyOrder removes any ordering constraint from this double (the
// default for stubs and spies; mocks default to InOrder).
func (d *CommandDouble) AnyOrder() *CommandDouble {
	d.exp.Order = types.OrderAny
	return d
}

// Passthrough directs matching invocations to run the real binary found
// on the pre-interception PATH, instead of returning a canned response.
func (d *CommandDouble) Passthrough() *CommandDouble {
	d.exp.Passthrough = true
	return d
}

// Record appends every matched invocation and its resolved response, as
// a JSON line, to the file at path (created if absent). scrub, if
// non-nil, is applied to the invocation/response pair before it is
// written, so callers can strip or mask fields bound for disk. Record
// is only valid on a passthrough spy: the recording session exists to
// capture the real binary's observed behavior, not a stub's canned one.
func (d *CommandDouble) Record(path string, scrub recording.Scrubber) *CommandDouble {
	d.controller.tb.Helper()
	if d.exp.Kind != types.KindSpy || !d.exp.Passthrough {
		d.controller.tb.Fatalf("cmdmox: %v", &ConfigurationError{Message: "record() requires a passthrough spy; call Spy(...).Passthrough() first"})
		return d
	}
	d.exp.RecordingTarget = path
	d.recorder = recording.New(path, scrub)
	return d
}

// AssertCalled fails the test immediately (via the Controller's
// testing.TB) unless this double was matched at least once. Valid any
// time after Replay; typically used instead of waiting for Verify when a
// spy's mere invocation, not its exact count, is what matters.
func (d *CommandDouble) AssertCalled() {
	d.controller.tb.Helper()
	if d.controller.matchCount(d.exp) == 0 {
		d.controller.tb.Fatalf("cmdmox: expected %s%s to have been called, but it was not", d.exp.Command, d.exp.ArgsRepr())
	}
}

// AssertNotCalled fails the test immediately unless this double was
// never matched.
func (d *CommandDouble) AssertNotCalled() {
	d.controller.tb.Helper()
	if n := d.controller.matchCount(d.exp); n > 0 {
		d.controller.tb.Fatalf("cmdmox: expected %s%s to have never been called, but it was called %d time(s)", d.exp.Command, d.exp.ArgsRepr(), n)
	}
}

// AssertCalledWith fails the test immediately unless this double was
// matched at least once by an invocation whose args equal exactly args.
// Unlike WithArgs, this only constrains the assertion, not matching
// during Replay itself.
func (d *CommandDouble) AssertCalledWith(args ...string) {
	d.controller.tb.Helper()
	for _, inv := range d.controller.matchedInvocations(d.exp) {
		if matcher.ArgvMatch(args, inv.Args) {
			return
		}
	}
	d.controller.tb.Fatalf("cmdmox: expected %s to have been called with %v, but it was not", d.exp.Command, args)
}

func newDouble(c *Controller, command string, kind types.Kind) *CommandDouble {
	declIndex := len(c.doubles)
	exp := &types.Expectation{
		Command:          command,
		Kind:             kind,
		DeclarationIndex: declIndex,
	}
	d := &CommandDouble{controller: c, exp: exp}
	c.doubles = append(c.doubles, d)
	return d
}
