package cmdmox

import "time"

// Option configures a Controller at construction time. Declared as a
// function type rather than a struct, matching the teacher's functional-
// option style for its own top-level config surfaces.
type Option func(*options)

type options struct {
	journalBound    int
	journalBoundSet bool
	ipcTimeout      time.Duration
	tempDirPrefix   string
	launcherPath    string
	envPrefix       string
	jsonReport      string
	junitReport     string
	junitSuite      string
}

func defaultOptions() options {
	return options{
		journalBound: 0,
		ipcTimeout:   5 * time.Second,
		envPrefix:    "CMDMOX",
	}
}

// WithJournalBound caps the number of invocations the controller retains
// for verification, evicting the oldest first once exceeded. Omitting
// this option leaves the journal unbounded; explicitly passing a
// non-positive n is a configuration error raised at NewController time,
// not silently treated as "unbounded".
func WithJournalBound(n int) Option {
	return func(o *options) {
		o.journalBound = n
		o.journalBoundSet = true
	}
}

// WithIPCTimeout overrides the per-operation transport timeout advertised
// to launchers via CMDMOX_IPC_TIMEOUT (default 5s).
func WithIPCTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ipcTimeout = d
		}
	}
}

// WithTempDirPrefix overrides the temp-directory prefix used by the
// controller's Environment, in place of the worker-qualified default.
func WithTempDirPrefix(prefix string) Option {
	return func(o *options) { o.tempDirPrefix = prefix }
}

// WithLauncherPath pins the absolute path to the compiled cmd/cmdmox-shim
// binary that shim entries delegate to. When omitted, Replay resolves it
// from the CMDMOX_SHIM_PATH environment variable, falling back to
// exec.LookPath("cmdmox-shim"); if neither resolves, Replay fails with a
// ConfigurationError.
func WithLauncherPath(path string) Option {
	return func(o *options) { o.launcherPath = path }
}

// WithEnvPrefix overrides the "CMDMOX" prefix used for every env var the
// controller and its launchers agree on (CMDMOX_IPC_SOCKET and friends).
// Useful when a test process itself shells out to another cmdmox-
// instrumented process and the two controllers must not collide.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.envPrefix = prefix
		}
	}
}

// WithJSONReport makes Verify write its outcome as compact JSON to path,
// in addition to returning its usual error, for consumption by external
// tooling (e.g. a CI step that annotates a PR from the report). The file
// is written even when Verify finds no violations.
func WithJSONReport(path string) Option {
	return func(o *options) { o.jsonReport = path }
}

// WithJUnitReport makes Verify write its outcome as a JUnit XML suite to
// path in addition to returning its usual error, naming the suite
// suiteName (defaults to "cmdmox" if empty). Useful for CI systems that
// render test results from JUnit XML rather than a process exit code.
func WithJUnitReport(path, suiteName string) Option {
	return func(o *options) {
		o.junitReport = path
		o.junitSuite = suiteName
	}
}
