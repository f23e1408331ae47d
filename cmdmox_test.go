package cmdmox_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox"
)

// shimBinaryPath is built once in TestMain and reused by every test in
// this file via cmdmox.WithLauncherPath, avoiding an N-test rebuild.
var shimBinaryPath string

func TestMain(m *testing.M) {
	bin, cleanup, err := buildShimBinary()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	shimBinaryPath = bin
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func buildShimBinary() (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "cmdmox-shim-build-")
	if err != nil {
		return "", nil, err
	}
	out := filepath.Join(dir, "cmdmox-shim")
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", out, "./cmd/cmdmox-shim")
	if combined, buildErr := cmd.CombinedOutput(); buildErr != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("build cmdmox-shim: %w\n%s", buildErr, combined)
	}
	return out, func() { os.RemoveAll(dir) }, nil
}

func newTestController(t *testing.T) *cmdmox.Controller {
	t.Helper()
	return cmdmox.NewController(t, cmdmox.WithLauncherPath(shimBinaryPath))
}

func runCommand(t *testing.T, name string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(name, args...)
	var outBuf, errBuf []byte
	cmd.Stdout = writerFunc(func(p []byte) (int, error) { outBuf = append(outBuf, p...); return len(p), nil })
	cmd.Stderr = writerFunc(func(p []byte) (int, error) { errBuf = append(errBuf, p...); return len(p), nil })
	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			t.Fatalf("run %s: %v", name, err)
		}
	}
	return string(outBuf), string(errBuf), code
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Scenario 1: a stubbed call returns its canned response verbatim.
func TestStubbedCallReturnsCannedResponse(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Stub("hi").Returns("hello", "", 0)

	require.NoError(t, ctrl.Replay())

	stdout, _, code := runCommand(t, "hi")
	assert.Equal(t, "hello", stdout)
	assert.Equal(t, 0, code)

	require.NoError(t, ctrl.Verify())

	journal := ctrl.Journal()
	require.Len(t, journal, 1)
	assert.Equal(t, "hi", journal[0].Command)
}

// Scenario 2: a mock with a declared argument list only matches that
// exact invocation; a different one verifies as unexpected.
func TestMockWithArgsMatchesExactly(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Mock("git").WithArgs("clone", "repo").Returns("", "", 0)
	require.NoError(t, ctrl.Replay())

	_, _, code := runCommand(t, "git", "clone", "repo")
	assert.Equal(t, 0, code)
	assert.NoError(t, ctrl.Verify())
}

func TestMockWithArgsReportsUnexpectedCommand(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Mock("git").WithArgs("clone", "repo").Returns("", "", 0)
	require.NoError(t, ctrl.Replay())

	runCommand(t, "git", "commit")

	err := ctrl.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `git`)
	assert.Contains(t, err.Error(), `"commit"`)
}

// Scenario 3: an ordered pair of mocks must be observed in declaration
// order; reversing the calls is a verification failure.
func TestOrderedPairSucceedsInDeclaredOrder(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Mock("first").WithArgs("a").InOrder()
	ctrl.Mock("second").WithArgs("b").InOrder()
	require.NoError(t, ctrl.Replay())

	runCommand(t, "first", "a")
	runCommand(t, "second", "b")

	assert.NoError(t, ctrl.Verify())
}

func TestOrderedPairFailsWhenReversed(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Mock("first").WithArgs("a").InOrder()
	ctrl.Mock("second").WithArgs("b").InOrder()
	require.NoError(t, ctrl.Replay())

	runCommand(t, "second", "b")
	runCommand(t, "first", "a")

	err := ctrl.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order violation")
}

// Scenario 4: a passthrough spy executes the real binary and still
// observes the call.
func TestPassthroughSpyRunsRealBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("passthrough scenario grounded on a POSIX echo binary")
	}
	ctrl := newTestController(t)
	spy := ctrl.Spy("echo").Passthrough()
	require.NoError(t, ctrl.Replay())

	stdout, _, code := runCommand(t, "echo", "hello")
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, 0, code)

	spy.AssertCalled()
	assert.NoError(t, ctrl.Verify())
}

// Scenario 5: sensitive env values declared on an expectation never
// leak into a verification diagnostic.
func TestEnvInjectionIsRedactedInDiagnostics(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Mock("deploy").WithArgs("--expected").WithEnv("API_KEY", "leaked-secret")
	require.NoError(t, ctrl.Replay())

	runCommand(t, "deploy", "--actual")

	err := ctrl.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
	assert.Contains(t, err.Error(), "***")
	assert.NotContains(t, err.Error(), "leaked-secret")
}

// Scenario 6: the journal evicts the oldest entry once its bound is
// exceeded.
func TestBoundedJournalEvictsOldestEntries(t *testing.T) {
	ctrl := cmdmox.NewController(t, cmdmox.WithLauncherPath(shimBinaryPath), cmdmox.WithJournalBound(2))
	ctrl.Stub("alpha").Returns("", "", 0)
	ctrl.Stub("beta").Returns("", "", 0)
	ctrl.Stub("gamma").Returns("", "", 0)
	require.NoError(t, ctrl.Replay())

	runCommand(t, "alpha")
	runCommand(t, "beta")
	runCommand(t, "gamma")

	require.NoError(t, ctrl.Verify())

	journal := ctrl.Journal()
	require.Len(t, journal, 2)
	assert.Equal(t, "beta", journal[0].Command)
	assert.Equal(t, "gamma", journal[1].Command)
}

// Scenario 7: Verify writes a JSON and a JUnit report alongside its
// returned error, reporting the same order violation both ways.
func TestVerifyWritesJSONAndJUnitReports(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "report.json")
	junitPath := filepath.Join(dir, "report.xml")

	ctrl := cmdmox.NewController(t,
		cmdmox.WithLauncherPath(shimBinaryPath),
		cmdmox.WithJSONReport(jsonPath),
		cmdmox.WithJUnitReport(junitPath, "integration"),
	)
	ctrl.Mock("first").WithArgs("a").InOrder()
	ctrl.Mock("second").WithArgs("b").InOrder()
	require.NoError(t, ctrl.Replay())

	runCommand(t, "second", "b")
	runCommand(t, "first", "a")

	require.Error(t, ctrl.Verify())

	jsonBytes, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"order_violations"`)
	assert.Contains(t, string(jsonBytes), `"passed":false`)

	junitBytes, err := os.ReadFile(junitPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(junitBytes), `name="integration"`))
	assert.Contains(t, string(junitBytes), "order violation")
}
