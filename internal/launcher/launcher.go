// Package launcher implements the short-lived single-shot program that
// runs in place of every intercepted command (spec §4.D). It is
// grounded on the dansimau-yas mockshim binary (argv[0] identity,
// env-driven configuration, real-binary passthrough via PATH search)
// generalized onto cmdmox's framed IPC protocol instead of a JSON
// config file, plus the teacher's cmd/exec.go signal/exit-code
// handling for the passthrough child process.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/cmdmox/cmdmox/internal/ipc"
	"github.com/cmdmox/cmdmox/internal/passthrough"
)

// DefaultPrefix is the env var name prefix used when Config.Prefix is
// left at its zero value, so tests/binaries can omit it.
const DefaultPrefix = "CMDMOX"

// Config names the environment variables a launcher reads, all
// prefix-qualified per spec §6.
type Config struct {
	Prefix string
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c Config) socketVar() string      { return c.prefix() + "_IPC_SOCKET" }
func (c Config) timeoutVar() string     { return c.prefix() + "_IPC_TIMEOUT" }
func (c Config) realCommandVar(name string) string {
	return c.prefix() + "_REAL_COMMAND_" + strings.ToUpper(sanitizeEnvFragment(name))
}

func sanitizeEnvFragment(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Exit codes per spec §6.
const (
	ExitPassthroughTimeout      = 124
	ExitPassthroughNotExecutable = 126
	ExitPassthroughNotFound     = 127
)

// Run executes the full launcher lifecycle: identify the command,
// connect to the transport, send the invocation, and act on the
// response(s). It returns the process exit code; callers pass it to
// os.Exit themselves so the function stays testable.
func Run(cfg Config, argv []string, stdin io.Reader, stdout, stderr io.Writer, environ []string) int {
	command := commandIdentity(argv[0])
	args := normalizeArgs(argv[1:])

	addr, ok := lookupEnv(environ, cfg.socketVar())
	if !ok || addr == "" {
		fmt.Fprintf(stderr, "cmdmox-shim: %s not set\n", cfg.socketVar())
		return 1
	}
	timeout := readTimeout(environ, cfg.timeoutVar())

	stdinText := readStdinIfPiped(stdin)
	env := envMap(environ)

	endpoint := ipc.New()
	client := ipc.NewClient(endpoint, addr, timeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		fmt.Fprintf(stderr, "cmdmox-shim: connect: %v\n", err)
		return 1
	}
	defer client.Close()

	invocationID := newInvocationID()
	req := ipc.Message{
		Kind:         ipc.KindInvocation,
		InvocationID: invocationID,
		Command:      command,
		Args:         args,
		Stdin:        stdinText,
		Env:          env,
	}
	if err := client.Send(req); err != nil {
		fmt.Fprintf(stderr, "cmdmox-shim: send: %v\n", err)
		return 1
	}

	resp, err := client.Receive()
	if err != nil {
		fmt.Fprintf(stderr, "cmdmox-shim: receive: %v\n", err)
		return 1
	}

	if resp.Passthrough != nil {
		result := runPassthrough(cfg, command, args, stdinText, env, *resp.Passthrough, stdout, stderr)
		if err := client.Send(ipc.Message{
			Kind:         ipc.KindPassthroughResult,
			InvocationID: resp.Passthrough.InvocationID,
			Stdout:       result.Stdout,
			Stderr:       result.Stderr,
			ExitCode:     result.ExitCode,
		}); err != nil {
			fmt.Fprintf(stderr, "cmdmox-shim: send passthrough result: %v\n", err)
			return 1
		}

		final, err := client.Receive()
		if err != nil {
			fmt.Fprintf(stderr, "cmdmox-shim: receive final response: %v\n", err)
			return 1
		}
		return applyResponse(final, stdout, stderr)
	}

	return applyResponse(resp, stdout, stderr)
}

// applyResponse writes stdout/stderr, merges any env overrides into the
// launcher's own process environment so later commands in the same
// process inherit them cumulatively (spec §4.D step 7), and returns the
// exit code.
func applyResponse(resp ipc.Message, stdout, stderr io.Writer) int {
	if resp.Stdout != "" {
		io.WriteString(stdout, resp.Stdout)
	}
	if resp.Stderr != "" {
		io.WriteString(stderr, resp.Stderr)
	}
	for k, v := range resp.EnvOut {
		os.Setenv(k, v)
	}
	return resp.ExitCode
}

// commandIdentity derives the command name from argv[0]: basename, with
// the .cmd/.exe extension stripped on Windows (spec §4.D step 1).
func commandIdentity(argv0 string) string {
	name := filepath.Base(argv0)
	if runtime.GOOS == "windows" {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// normalizeArgs undoes the single layer of batch-file caret-escaping
// (^^ -> ^) introduced by the Windows shim template (spec §4.D step 3);
// a no-op on other platforms.
func normalizeArgs(args []string) []string {
	if runtime.GOOS != "windows" {
		return args
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "^^", "^")
	}
	return out
}

// readStdinIfPiped reads r to EOF only when it is not an interactive
// terminal, guarding against hanging a console session (spec §4.D step
// 4). Detection uses the file descriptor when r is an *os.File; other
// readers (tests) are always treated as piped.
func readStdinIfPiped(r io.Reader) string {
	if f, ok := r.(*os.File); ok {
		if term.IsTerminal(int(f.Fd())) {
			return ""
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// envMap snapshots environ (KEY=VALUE pairs) into a map, shallow-copying
// the launcher's current environment (spec §4.D step 5).
func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// newInvocationID returns a fresh unique token identifying one
// invocation round trip, per spec §4.D step 6.
func newInvocationID() string {
	return uuid.NewString()
}

func lookupEnv(environ []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

func readTimeout(environ []string, key string) time.Duration {
	raw, ok := lookupEnv(environ, key)
	if !ok {
		return ipc.DefaultTimeout
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return ipc.DefaultTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}

// runPassthrough resolves and executes the real binary named by
// command, honoring req's timeout, per spec §4.D step 7 (passthrough
// branch) and §6 exit-code table.
func runPassthrough(cfg Config, command string, args []string, stdin string, capturedEnv map[string]string, req ipc.PassthroughRequest, stdout, stderr io.Writer) passthroughOutcome {
	real, err := resolveRealBinary(cfg, command, req.LookupPath, capturedEnv)
	if err != nil {
		if errors.Is(err, errNotFound) {
			fmt.Fprintf(stderr, "cmdmox-shim: command not found in lookup path: %s\n", command)
			return passthroughOutcome{ExitCode: ExitPassthroughNotFound, Stderr: fmt.Sprintf("%s: not found\n", command)}
		}
		fmt.Fprintf(stderr, "cmdmox-shim: %s: not executable\n", command)
		return passthroughOutcome{ExitCode: ExitPassthroughNotExecutable, Stderr: fmt.Sprintf("%s: not executable\n", command)}
	}

	mergedEnv := mergeEnv(capturedEnv, req.ExtraEnv)

	timeout := req.TimeoutSeconds
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeout*float64(time.Second)))
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	cmd := exec.CommandContext(ctx, real, args...)
	cmd.Env = toEnviron(mergedEnv)
	cmd.Stdin = strings.NewReader(stdin)

	// Output is only captured here; it reaches the caller once, through
	// the controller's final response handled by applyResponse.
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return passthroughOutcome{
			ExitCode: ExitPassthroughTimeout,
			Stdout:   outBuf.String(),
			Stderr:   errBuf.String() + fmt.Sprintf("cmdmox-shim: %s timed out after %.0fs\n", command, timeout),
		}
	}

	return passthroughOutcome{
		ExitCode: passthrough.ExitCodeFromError(runErr),
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
	}
}

type passthroughOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

var errNotFound = errors.New("launcher: real command not found")

// resolveRealBinary consults the per-command override variable first,
// then searches lookupPath for an executable file named command (spec
// §4.D step 7).
func resolveRealBinary(cfg Config, command, lookupPath string, capturedEnv map[string]string) (string, error) {
	if override, ok := capturedEnv[cfg.realCommandVar(command)]; ok && override != "" {
		if info, err := os.Stat(override); err == nil && !info.IsDir() {
			if !isExecutable(info) {
				return "", errNotExecutable
			}
			return override, nil
		}
		return "", errNotFound
	}

	for _, dir := range filepath.SplitList(lookupPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, command)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if !isExecutable(info) {
			return "", errNotExecutable
		}
		return candidate, nil
	}
	return "", errNotFound
}

var errNotExecutable = errors.New("launcher: real command not executable")

func mergeEnv(captured, extra map[string]string) map[string]string {
	out := make(map[string]string, len(captured)+len(extra))
	for k, v := range captured {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func toEnviron(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
