// Package cmdmox implements record/replay/verify testing of external
// commands: declare expected invocations of a command in RECORD phase,
// intercept and respond to them via PATH redirection during REPLAY, and
// assert every expectation was satisfied in VERIFY.
package cmdmox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cmdmox/cmdmox/internal/clog"
	"github.com/cmdmox/cmdmox/internal/environment"
	"github.com/cmdmox/cmdmox/internal/ipc"
	"github.com/cmdmox/cmdmox/internal/journal"
	"github.com/cmdmox/cmdmox/internal/passthrough"
	"github.com/cmdmox/cmdmox/internal/shim"
	"github.com/cmdmox/cmdmox/internal/types"
	"github.com/cmdmox/cmdmox/internal/verify"
)

// Phase is the controller's lifecycle state (spec §4.E).
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseRecord
	PhaseReplay
	PhaseVerify
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseRecord:
		return "record"
	case PhaseReplay:
		return "replay"
	case PhaseVerify:
		return "verify"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Controller is the state machine owning expectation registration, the
// intercepting environment, the transport endpoint, and the journal. A
// Controller is single-use: construct a fresh one per test via
// NewController.
type Controller struct {
	tb   testing.TB
	opts options

	mu           sync.Mutex
	phase        Phase
	doubles      []*CommandDouble
	matchCounts  map[int]int
	originalPath string

	env              *environment.Environment
	endpoint         ipc.Endpoint
	server           *ipc.Server
	journal          *journal.Journal
	passthroughTable *passthrough.Table
	log              *clog.Logger

	stopSweeper func()
}

// NewController constructs a Controller in PhaseRecord, ready to accept
// expectation declarations. tb is used for t.Helper()/t.Fatalf() in spy
// assertion helpers and to register a defensive Cleanup teardown, the
// same role testing.TB plays in other Go testing-helper libraries; it is
// never used to report passing assertions, only failures.
func NewController(tb testing.TB, opts ...Option) *Controller {
	tb.Helper()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.journalBoundSet && o.journalBound <= 0 {
		tb.Fatalf("cmdmox: %v", &ConfigurationError{Message: fmt.Sprintf("journal bound must be positive, got %d", o.journalBound)})
	}

	c := &Controller{
		tb:          tb,
		opts:        o,
		phase:       PhaseRecord,
		matchCounts: make(map[int]int),
		log:         clog.New("cmdmox"),
	}

	tb.Cleanup(func() {
		c.mu.Lock()
		phase := c.phase
		c.mu.Unlock()
		if phase == PhaseReplay {
			if err := c.Verify(); err != nil {
				tb.Logf("cmdmox: deferred verify in Cleanup failed: %v", err)
			}
		}
	})

	return c
}

// Mock declares a required, exactly-matching double for command. Mocks
// default to in_order and, absent an explicit Times, must be called
// exactly once.
func (c *Controller) Mock(command string) *CommandDouble {
	d := c.newDoubleChecked(command, types.KindMock)
	d.exp.Order = types.OrderInOrder
	return d
}

// Stub declares a behavioral-replacement double for command, never
// required to be called.
func (c *Controller) Stub(command string) *CommandDouble {
	return c.newDoubleChecked(command, types.KindStub)
}

// Spy declares an observing double for command: records calls, may be
// marked Passthrough, and supports AssertCalled/AssertNotCalled/
// AssertCalledWith after Replay.
func (c *Controller) Spy(command string) *CommandDouble {
	return c.newDoubleChecked(command, types.KindSpy)
}

func (c *Controller) newDoubleChecked(command string, kind types.Kind) *CommandDouble {
	c.tb.Helper()
	if command == "" {
		c.tb.Fatalf("cmdmox: %v", &ConfigurationError{Message: "command name must not be empty"})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseRecord {
		c.tb.Fatalf("cmdmox: %v", &LifecycleError{Operation: kind.String(), Phase: c.phase.String()})
	}
	for _, existing := range c.doubles {
		if existing.exp.Command != command && caseFold(existing.exp.Command) == caseFold(command) {
			c.tb.Fatalf("cmdmox: %v", &ConfigurationError{Message: fmt.Sprintf("commands %q and %q conflict under case-insensitive resolution", existing.exp.Command, command)})
		}
	}
	return newDouble(c, command, kind)
}

func caseFold(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

// Journal returns a snapshot of every invocation recorded so far, oldest
// first, subject to WithJournalBound. Valid any time after Replay,
// including after Verify has torn down the environment.
func (c *Controller) Journal() []Invocation {
	c.mu.Lock()
	j := c.journal
	c.mu.Unlock()
	if j == nil {
		return nil
	}
	return j.Entries()
}

// matchCount returns how many invocations have matched exp so far.
func (c *Controller) matchCount(exp *types.Expectation) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchCounts[exp.DeclarationIndex]
}

// matchedInvocations returns the journal entries matched by exp so far.
func (c *Controller) matchedInvocations(exp *types.Expectation) []types.Invocation {
	var out []types.Invocation
	for _, inv := range c.Journal() {
		if inv.MatchedDeclIndex == exp.DeclarationIndex {
			out = append(out, inv)
		}
	}
	return out
}

// Replay acquires the environment, generates launcher entries for every
// registered command, and starts the transport. Calling Replay while
// already in PhaseReplay is a no-op. Any failure tears down whatever
// partial state was acquired before returning.
func (c *Controller) Replay() error {
	c.mu.Lock()
	if c.phase == PhaseReplay {
		c.mu.Unlock()
		return nil
	}
	if c.phase != PhaseRecord {
		phase := c.phase
		c.mu.Unlock()
		return &LifecycleError{Operation: "replay", Phase: phase.String()}
	}
	c.mu.Unlock()

	launcherPath, err := c.resolveLauncherPath()
	if err != nil {
		return err
	}

	c.originalPath = os.Getenv("PATH")
	prefix := c.opts.tempDirPrefix
	if prefix == "" {
		prefix = environment.WorkerPrefix("")
	}
	env := environment.New(prefix)
	if err := env.Enter("", ""); err != nil {
		return &MissingEnvironmentError{Err: err}
	}

	dir := env.Dir()
	sockPath := filepath.Join(dir, "ipc.sock")

	endpoint := ipc.New()
	server := ipc.NewServer(endpoint, c.handleMessage)
	addr, err := server.Start(sockPath)
	if err != nil {
		_ = env.Exit()
		return &TransportError{Err: err}
	}

	if err := ipc.WaitReady(endpoint, addr, 2*time.Second); err != nil {
		_ = server.Stop()
		_ = env.Exit()
		return &TransportError{Err: err}
	}

	if err := env.SetVar(c.socketVar(), addr); err != nil {
		_ = server.Stop()
		_ = env.Exit()
		return &MissingEnvironmentError{Err: err}
	}
	if err := env.SetVar(c.timeoutVar(), formatSeconds(c.opts.ipcTimeout)); err != nil {
		_ = server.Stop()
		_ = env.Exit()
		return &MissingEnvironmentError{Err: err}
	}

	c.mu.Lock()
	commands := make([]string, len(c.doubles))
	for i, d := range c.doubles {
		commands[i] = d.exp.Command
	}
	c.mu.Unlock()

	gen := shim.New(launcherPath, dir)
	if err := gen.GenerateAll(commands); err != nil {
		_ = server.Stop()
		_ = env.Exit()
		return &ConfigurationError{Message: err.Error()}
	}

	table := passthrough.NewTable()
	stopSweeper := table.StartSweeper(30 * time.Second)

	c.mu.Lock()
	c.env = env
	c.endpoint = endpoint
	c.server = server
	c.journal = journal.New(c.opts.journalBound)
	c.passthroughTable = table
	c.stopSweeper = stopSweeper
	c.phase = PhaseReplay
	c.mu.Unlock()

	c.log.Debugf("replay started: dir=%s addr=%s commands=%v", dir, addr, commands)
	return nil
}

// Verify runs the three sub-verifiers over the frozen journal, finalizes
// resources, and returns a single aggregated error (or nil). It always
// tears down the environment and transport, even when verification
// itself fails.
func (c *Controller) Verify() error {
	c.mu.Lock()
	if c.phase != PhaseReplay {
		phase := c.phase
		c.mu.Unlock()
		return &LifecycleError{Operation: "verify", Phase: phase.String()}
	}
	env := c.env
	server := c.server
	stopSweeper := c.stopSweeper
	entries := c.journal.Entries()
	doubles := c.doubles
	c.phase = PhaseVerify
	c.mu.Unlock()

	expectations := make([]*types.Expectation, len(doubles))
	for i, d := range doubles {
		expectations[i] = d.exp
	}
	result := verify.Run(entries, expectations)
	c.writeReports(result)

	if stopSweeper != nil {
		stopSweeper()
	}
	var teardownErr error
	if server != nil {
		teardownErr = server.Stop()
	}
	if env != nil {
		if err := env.Exit(); err != nil && teardownErr == nil {
			teardownErr = err
		}
	}

	c.mu.Lock()
	c.phase = PhaseDisposed
	c.mu.Unlock()

	if !result.Empty() {
		return &VerificationError{Message: verify.Diagnostic(result)}
	}
	if teardownErr != nil {
		return &MissingEnvironmentError{Err: teardownErr}
	}
	return nil
}

// writeReports emits the configured JSON/JUnit report files, if any. A
// write failure is logged, not fatal: report output is a side channel
// for CI tooling, never the authoritative pass/fail signal, which is
// Verify's returned error.
func (c *Controller) writeReports(result verify.Result) {
	if c.opts.jsonReport == "" && c.opts.junitReport == "" {
		return
	}
	report := verify.BuildReport(result)

	if path := c.opts.jsonReport; path != "" {
		f, err := os.Create(path)
		if err != nil {
			c.log.Status("json report: %v", err)
		} else {
			if err := verify.FormatJSON(f, report); err != nil {
				c.log.Status("json report: %v", err)
			}
			_ = f.Close()
		}
	}

	if path := c.opts.junitReport; path != "" {
		f, err := os.Create(path)
		if err != nil {
			c.log.Status("junit report: %v", err)
		} else {
			suite := c.opts.junitSuite
			if suite == "" {
				suite = "cmdmox"
			}
			if err := verify.FormatJUnit(f, report, suite, time.Time{}); err != nil {
				c.log.Status("junit report: %v", err)
			}
			_ = f.Close()
		}
	}
}

func (c *Controller) resolveLauncherPath() (string, error) {
	if c.opts.launcherPath != "" {
		return c.opts.launcherPath, nil
	}
	if p := os.Getenv(c.opts.envPrefix + "_SHIM_PATH"); p != "" {
		return p, nil
	}
	if p, err := exec.LookPath("cmdmox-shim"); err == nil {
		return p, nil
	}
	return "", &ConfigurationError{Message: "no launcher binary found: set WithLauncherPath, CMDMOX_SHIM_PATH, or install cmdmox-shim on PATH"}
}

func (c *Controller) socketVar() string  { return c.opts.envPrefix + "_IPC_SOCKET" }
func (c *Controller) timeoutVar() string { return c.opts.envPrefix + "_IPC_TIMEOUT" }

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// handleMessage is the ipc.Server callback: it dispatches on message
// kind and never blocks the caller beyond the handler's own work, since
// each connection already runs on its own worker goroutine.
func (c *Controller) handleMessage(_ ipc.Conn, msg ipc.Message) (ipc.Message, error) {
	switch msg.Kind {
	case ipc.KindInvocation:
		return c.handleInvocation(msg), nil
	case ipc.KindPassthroughResult:
		return c.handlePassthroughResult(msg), nil
	default:
		return ipc.Message{}, fmt.Errorf("cmdmox: %w", &ProtocolError{Err: fmt.Errorf("unknown message kind %q", msg.Kind)})
	}
}

func (c *Controller) handleInvocation(msg ipc.Message) ipc.Message {
	inv := types.Invocation{
		ID:        msg.InvocationID,
		Command:   msg.Command,
		Args:      msg.Args,
		Stdin:     msg.Stdin,
		Env:       msg.Env,
		Timestamp: time.Now(),
	}

	exp := c.match(inv)
	if exp == nil {
		inv.MatchedDeclIndex = -1
		inv.ExitCode = 1
		inv.Stderr = fmt.Sprintf("cmdmox: %v\n", &UnexpectedCommandError{Command: inv.Command, Args: inv.Args})
		c.journal.Append(inv)
		return ipc.Message{Kind: ipc.KindResponse, Stderr: inv.Stderr, ExitCode: inv.ExitCode}
	}
	inv.MatchedDeclIndex = exp.DeclarationIndex

	double := c.doubleAt(exp.DeclarationIndex)

	if exp.Passthrough {
		req := c.passthroughTable.PrepareRequest(exp, inv, environment.NormalizePath(c.originalPath), exp.EnvOverrides, 0)
		return ipc.Message{
			Kind: ipc.KindResponse,
			Passthrough: &ipc.PassthroughRequest{
				InvocationID:   req.InvocationID,
				LookupPath:     req.LookupPath,
				ExtraEnv:       req.ExtraEnv,
				TimeoutSeconds: req.Timeout.Seconds(),
			},
		}
	}

	resp := c.buildResponse(exp, inv)
	inv.Stdout, inv.Stderr, inv.ExitCode = resp.Stdout, resp.Stderr, resp.ExitCode
	c.journal.Append(inv)
	if double != nil && double.recorder != nil {
		if err := double.recorder.Append(inv, resp); err != nil {
			c.log.Status("recording append failed: %v", err)
		}
	}

	return ipc.Message{Kind: ipc.KindResponse, Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode, EnvOut: resp.EnvOverrides}
}

func (c *Controller) handlePassthroughResult(msg ipc.Message) ipc.Message {
	inv, exp, err := c.passthroughTable.Finalize(types.PassthroughResult{
		InvocationID: msg.InvocationID,
		Stdout:       msg.Stdout,
		Stderr:       msg.Stderr,
		ExitCode:     msg.ExitCode,
	})
	if err != nil {
		return ipc.Message{Kind: ipc.KindResponse, Stderr: err.Error(), ExitCode: 1}
	}

	inv.MatchedDeclIndex = exp.DeclarationIndex
	c.journal.Append(inv)

	if double := c.doubleAt(exp.DeclarationIndex); double != nil && double.recorder != nil {
		resp := types.Response{Stdout: inv.Stdout, Stderr: inv.Stderr, ExitCode: inv.ExitCode}
		if err := double.recorder.Append(inv, resp); err != nil {
			c.log.Status("recording append failed: %v", err)
		}
	}

	return ipc.Message{Kind: ipc.KindResponse, Stdout: inv.Stdout, Stderr: inv.Stderr, ExitCode: inv.ExitCode}
}

// match implements spec §4.E's matching algorithm: among expectations
// for inv.Command with remaining capacity whose predicates all hold,
// the earliest-declared one wins. Order-violation and over/under-count
// diagnostics are derived later, in VERIFY, from the declaration-order
// history this produces.
func (c *Controller) match(inv types.Invocation) *types.Expectation {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.doubles {
		exp := d.exp
		if exp.Command != inv.Command {
			continue
		}
		if ok, _ := exp.Matches(inv); !ok {
			continue
		}
		if !c.hasCapacityLocked(exp) {
			continue
		}
		c.matchCounts[exp.DeclarationIndex]++
		return exp
	}
	return nil
}

// hasCapacityLocked reports whether exp can still accept another match.
// Stubs (and spies/mocks with no explicit or default count) are
// unbounded; a mock defaults to exactly 1, and any double with an
// explicit Times() is capped at that value.
func (c *Controller) hasCapacityLocked(exp *types.Expectation) bool {
	var capacity int
	switch {
	case exp.Count.Set:
		capacity = exp.Count.Exact
	case exp.Kind == types.KindMock:
		capacity = 1
	default:
		return true
	}
	return c.matchCounts[exp.DeclarationIndex] < capacity
}

func (c *Controller) buildResponse(exp *types.Expectation, inv types.Invocation) types.Response {
	var resp types.Response
	switch {
	case exp.Handler != nil:
		resp = exp.Handler.Run(inv)
	case exp.StaticResponse != nil:
		resp = *exp.StaticResponse
	}

	if len(exp.EnvOverrides) > 0 {
		merged := make(map[string]string, len(resp.EnvOverrides)+len(exp.EnvOverrides))
		for k, v := range resp.EnvOverrides {
			merged[k] = v
		}
		for k, v := range exp.EnvOverrides {
			merged[k] = v
		}
		resp.EnvOverrides = merged
	}
	return resp
}

func (c *Controller) doubleAt(declIndex int) *CommandDouble {
	c.mu.Lock()
	defer c.mu.Unlock()
	if declIndex < 0 || declIndex >= len(c.doubles) {
		return nil
	}
	return c.doubles[declIndex]
}
