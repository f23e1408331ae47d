package verify_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox/internal/matcher"
	"github.com/cmdmox/cmdmox/internal/types"
	"github.com/cmdmox/cmdmox/internal/verify"
)

func exactExpectation(command string, declIndex int, kind types.Kind, order types.Order) *types.Expectation {
	return &types.Expectation{
		Command:          command,
		ArgMatchers:      []matcher.ArgMatcher{matcher.Exact("x")},
		Kind:             kind,
		Order:            order,
		DeclarationIndex: declIndex,
	}
}

func TestRunReportsUnexpectedInvocation(t *testing.T) {
	entries := []types.Invocation{
		{Command: "git", Args: []string{"status"}, MatchedDeclIndex: -1},
	}
	exp := exactExpectation("git", 0, types.KindStub, types.OrderAny)

	r := verify.Run(entries, []*types.Expectation{exp})
	require.Len(t, r.Unexpected, 1)
	assert.Equal(t, "git", r.Unexpected[0].Invocation.Command)
	assert.Len(t, r.Unexpected[0].Candidates, 1)
	assert.False(t, r.Empty())
}

func TestRunPassesWhenEveryInvocationMatched(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindMock, types.OrderAny)
	entries := []types.Invocation{
		{Command: "git", MatchedDeclIndex: 0},
	}

	r := verify.Run(entries, []*types.Expectation{exp})
	assert.True(t, r.Empty())
}

func TestRunReportsOrderViolation(t *testing.T) {
	first := exactExpectation("git", 0, types.KindStub, types.OrderInOrder)
	second := exactExpectation("npm", 1, types.KindStub, types.OrderInOrder)

	entries := []types.Invocation{
		{Command: "npm", MatchedDeclIndex: 1},
		{Command: "git", MatchedDeclIndex: 0},
	}

	r := verify.Run(entries, []*types.Expectation{first, second})
	require.Len(t, r.Order, 1)
	assert.Equal(t, []*types.Expectation{first, second}, r.Order[0].Expected)
	assert.Equal(t, []*types.Expectation{second, first}, r.Order[0].Observed)
}

func TestRunReportsCountViolationForMock(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindMock, types.OrderAny)

	r := verify.Run(nil, []*types.Expectation{exp})
	require.Len(t, r.Count, 1)
	assert.Equal(t, 1, r.Count[0].Want)
	assert.Equal(t, 0, r.Count[0].Got)
}

func TestRunIgnoresUnderCalledStub(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindStub, types.OrderAny)
	r := verify.Run(nil, []*types.Expectation{exp})
	assert.Empty(t, r.Count)
}

func TestRunHonorsExplicitCount(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindStub, types.OrderAny)
	exp.Count = types.CallCount{Set: true, Exact: 2}

	entries := []types.Invocation{{Command: "git", MatchedDeclIndex: 0}}
	r := verify.Run(entries, []*types.Expectation{exp})
	require.Len(t, r.Count, 1)
	assert.Equal(t, 2, r.Count[0].Want)
	assert.Equal(t, 1, r.Count[0].Got)
}

func TestDiagnosticRedactsSensitiveEnv(t *testing.T) {
	entries := []types.Invocation{
		{
			Command:          "git",
			MatchedDeclIndex: -1,
			Env:              map[string]string{"API_TOKEN": "sekrit", "HOME": "/home/u"},
		},
	}
	r := verify.Run(entries, nil)
	msg := verify.Diagnostic(r)

	assert.Contains(t, msg, "unexpected invocation: git")
	assert.Contains(t, msg, "API_TOKEN=\"***\"")
	assert.Contains(t, msg, "HOME=\"/home/u\"")
	assert.NotContains(t, msg, "sekrit")
}

func TestBuildReportAndFormatJSON(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindMock, types.OrderAny)
	r := verify.Run(nil, []*types.Expectation{exp})
	report := verify.BuildReport(r)
	assert.False(t, report.Passed)
	require.Len(t, report.Count, 1)
	assert.Equal(t, "git", report.Count[0].Command)

	var buf strings.Builder
	require.NoError(t, verify.FormatJSON(&buf, report))
	assert.Contains(t, buf.String(), `"command":"git"`)
}

func TestFormatJUnitRendersFailures(t *testing.T) {
	exp := exactExpectation("git", 0, types.KindMock, types.OrderAny)
	r := verify.Run(nil, []*types.Expectation{exp})
	report := verify.BuildReport(r)

	var buf strings.Builder
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, verify.FormatJUnit(&buf, report, "cmdmox-suite", ts))

	out := buf.String()
	assert.Contains(t, out, "<testsuites")
	assert.Contains(t, out, "cmdmox-suite")
	assert.Contains(t, out, "count: git")
	assert.Contains(t, out, `failures="1"`)
}

func TestFormatJUnitPassesWithNoFailures(t *testing.T) {
	r := verify.Run(nil, nil)
	report := verify.BuildReport(r)

	var buf strings.Builder
	require.NoError(t, verify.FormatJUnit(&buf, report, "cmdmox-suite", time.Time{}))
	assert.Contains(t, buf.String(), `failures="0"`)
}
