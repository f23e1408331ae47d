// Package verify implements the three sub-verifiers run in order over the
// frozen journal (spec §4.E): Unexpected, Order, Count. It is grounded on
// the teacher's internal/verify package (VerifyResult/StepResult,
// BuildResult, FormatJSON/FormatJUnit), generalized from "scenario step
// consumption" to "expectation match/order/count".
package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cmdmox/cmdmox/internal/redact"
	"github.com/cmdmox/cmdmox/internal/types"
)

// UnexpectedEntry describes one journal entry that matched no
// expectation.
type UnexpectedEntry struct {
	Invocation types.Invocation
	Candidates []*types.Expectation
}

// OrderViolation describes the declared in-order sequence (which may
// span several different commands) diverging from what was observed.
type OrderViolation struct {
	Expected []*types.Expectation // declaration order
	Observed []*types.Expectation // observed order
}

// CountViolation describes an expectation whose call count did not match
// what was required.
type CountViolation struct {
	Expectation *types.Expectation
	Want        int
	Got         int
	Observed    []types.Invocation
}

// Result aggregates all three sub-verifiers' findings.
type Result struct {
	Unexpected []UnexpectedEntry
	Order      []OrderViolation
	Count      []CountViolation
}

// Empty reports whether verification found nothing to complain about.
func (r Result) Empty() bool {
	return len(r.Unexpected) == 0 && len(r.Order) == 0 && len(r.Count) == 0
}

// Run executes all three sub-verifiers over entries against expectations
// and returns their combined findings.
func Run(entries []types.Invocation, expectations []*types.Expectation) Result {
	return Result{
		Unexpected: unexpected(entries, expectations),
		Order:      order(entries, expectations),
		Count:      count(entries, expectations),
	}
}

// unexpected reports every journal entry that matched no expectation,
// along with the closest candidates considered for the same command name.
func unexpected(entries []types.Invocation, expectations []*types.Expectation) []UnexpectedEntry {
	var out []UnexpectedEntry
	for _, inv := range entries {
		if inv.MatchedDeclIndex >= 0 {
			continue
		}
		var candidates []*types.Expectation
		for _, e := range expectations {
			if e.Command == inv.Command {
				candidates = append(candidates, e)
			}
		}
		out = append(out, UnexpectedEntry{Invocation: inv, Candidates: candidates})
	}
	return out
}

// order confirms that the first journal match of every in-order
// expectation occurs in declaration order, reporting the first
// divergence. The sequence spans all commands together rather than being
// partitioned per command: a test may declare in_order on expectations
// for different commands (e.g. "first" then "second") and require the
// first to be observed before the second.
func order(entries []types.Invocation, expectations []*types.Expectation) []OrderViolation {
	var ordered []*types.Expectation
	for _, e := range expectations {
		if e.Order == types.OrderInOrder {
			ordered = append(ordered, e)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DeclarationIndex < ordered[j].DeclarationIndex
	})

	firstMatchPos := make(map[int]int) // DeclarationIndex -> journal position
	for pos, inv := range entries {
		if inv.MatchedDeclIndex < 0 {
			continue
		}
		if _, seen := firstMatchPos[inv.MatchedDeclIndex]; !seen {
			firstMatchPos[inv.MatchedDeclIndex] = pos
		}
	}

	var observed []*types.Expectation
	for _, e := range ordered {
		if _, ok := firstMatchPos[e.DeclarationIndex]; ok {
			observed = append(observed, e)
		}
	}
	sort.SliceStable(observed, func(i, j int) bool {
		return firstMatchPos[observed[i].DeclarationIndex] < firstMatchPos[observed[j].DeclarationIndex]
	})

	if sameOrder(ordered, observed) {
		return nil
	}
	return []OrderViolation{{Expected: ordered, Observed: observed}}
}

func sameOrder(expected, observed []*types.Expectation) bool {
	// Only compare expectations that were actually observed at least
	// once; an unfulfilled in-order expectation is a Count violation,
	// not an Order violation.
	var expectedObserved []*types.Expectation
	observedSet := make(map[int]bool, len(observed))
	for _, e := range observed {
		observedSet[e.DeclarationIndex] = true
	}
	for _, e := range expected {
		if observedSet[e.DeclarationIndex] {
			expectedObserved = append(expectedObserved, e)
		}
	}
	if len(expectedObserved) != len(observed) {
		return false
	}
	for i := range expectedObserved {
		if expectedObserved[i].DeclarationIndex != observed[i].DeclarationIndex {
			return false
		}
	}
	return true
}

// count checks every mock (or explicitly-timed) expectation's observed
// call count against what was required. Stubs never fail for
// under-calling.
func count(entries []types.Invocation, expectations []*types.Expectation) []CountViolation {
	var violations []CountViolation
	for _, e := range expectations {
		want, required := effectiveCount(e)
		if !required {
			continue
		}

		var observed []types.Invocation
		for _, inv := range entries {
			if inv.MatchedDeclIndex == e.DeclarationIndex {
				observed = append(observed, inv)
			}
		}

		if len(observed) != want {
			violations = append(violations, CountViolation{
				Expectation: e,
				Want:        want,
				Got:         len(observed),
				Observed:    observed,
			})
		}
	}
	return violations
}

// effectiveCount returns the required call count for e and whether a
// count check applies at all. Stubs are never checked unless an explicit
// times() was declared. Mocks default to exactly 1 if unspecified.
func effectiveCount(e *types.Expectation) (want int, required bool) {
	if e.Count.Set {
		return e.Count.Exact, true
	}
	if e.Kind == types.KindMock {
		return 1, true
	}
	return 0, false
}

// Diagnostic renders a human-readable, multi-section message summarizing
// every discrepancy in r, redacting sensitive env values throughout.
func Diagnostic(r Result) string {
	var b strings.Builder

	for _, u := range r.Unexpected {
		fmt.Fprintf(&b, "unexpected invocation: %s%s\n", u.Invocation.Command, reprArgs(u.Invocation.Args))
		fmt.Fprintf(&b, "  stdin: %q\n", u.Invocation.Stdin)
		fmt.Fprintf(&b, "  env: %s\n", reprEnv(u.Invocation.Env))
		if len(u.Candidates) == 0 {
			b.WriteString("  no expectations declared for this command\n")
		} else {
			b.WriteString("  candidate expectations:\n")
			for _, c := range u.Candidates {
				fmt.Fprintf(&b, "    %s%s", c.Command, c.ArgsRepr())
				if len(c.EnvOverrides) > 0 {
					fmt.Fprintf(&b, " env=%s", reprEnv(c.EnvOverrides))
				}
				b.WriteString("\n")
			}
		}
	}

	for _, o := range r.Order {
		b.WriteString("order violation:\n")
		b.WriteString("  expected: " + reprExpectations(o.Expected) + "\n")
		b.WriteString("  observed: " + reprExpectations(o.Observed) + "\n")
	}

	for _, c := range r.Count {
		fmt.Fprintf(&b, "count violation for %s%s: want %d, got %d\n",
			c.Expectation.Command, c.Expectation.ArgsRepr(), c.Want, c.Got)
		for _, inv := range c.Observed {
			fmt.Fprintf(&b, "  observed call: %s%s\n", inv.Command, reprArgs(inv.Args))
		}
	}

	return b.String()
}

func reprArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func reprEnv(env map[string]string) string {
	redacted := redact.Env(env)
	parts := make([]string, 0, len(redacted))
	for k, v := range redacted {
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

func reprExpectations(exps []*types.Expectation) string {
	parts := make([]string, len(exps))
	for i, e := range exps {
		parts[i] = e.Command + e.ArgsRepr()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
