// Package environment implements the scoped acquisition and release of a
// temporary directory and a set of process-environment mutations used to
// intercept command resolution via PATH.
//
// It is the Environment Manager (Component A): created on the
// controller's RECORD→REPLAY transition and destroyed on REPLAY→VERIFY
// completion or abort. It never touches any state other than the
// mutations it made itself, and it restores them on every exit path.
package environment

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// ErrAlreadyEntered is returned by Enter when called on an Environment that
// is already active. Environments are not reentrant.
var ErrAlreadyEntered = errors.New("environment: already entered")

// ErrNotEntered is returned by Exit when called before Enter.
var ErrNotEntered = errors.New("environment: not entered")

// Mutation records a single environment-variable change so it can be
// reverted precisely: restore the prior value if Had is true, otherwise
// unset the variable entirely.
type Mutation struct {
	Name string
	Had  bool
	Prior string
}

// Environment owns a temp directory and the PATH/env mutations made to
// route command resolution through it.
type Environment struct {
	// Prefix names the temp-directory prefix (worker-qualified for
	// parallel test processes).
	Prefix string

	mu        sync.Mutex
	entered   bool
	dir       string
	mutations []Mutation
	teardownErrs []error
}

// New returns an Environment that will create directories under os.TempDir()
// using prefix (worker-qualified by the caller, e.g. "cmdmox-<worker>-<pid>-").
func New(prefix string) *Environment {
	if prefix == "" {
		prefix = "cmdmox-"
	}
	return &Environment{Prefix: prefix}
}

// Dir returns the temp directory path. Valid only after Enter succeeds.
func (e *Environment) Dir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir
}

// Enter snapshots the process environment that will be touched, creates the
// temp directory, and mutates PATH/transport variables. It is not
// reentrant: calling Enter twice without an intervening Exit fails.
func (e *Environment) Enter(socketVar, socketValue string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.entered {
		return ErrAlreadyEntered
	}

	dir, err := os.MkdirTemp("", e.Prefix)
	if err != nil {
		return fmt.Errorf("environment: create temp dir: %w", err)
	}
	dir, err = shortAlias(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("environment: resolve short alias: %w", err)
	}

	e.dir = dir
	e.mutations = nil
	e.teardownErrs = nil

	e.setEnv("PATH", mutatePath(os.Getenv("PATH"), dir))
	if socketVar != "" {
		e.setEnv(socketVar, socketValue)
	}
	if runtime.GOOS == "windows" {
		e.setEnv("PATHEXT", ensurePathExt(os.Getenv("PATHEXT")))
	}

	e.entered = true
	return nil
}

// SetVar records and applies one more tracked mutation on an already
// entered Environment, so Exit restores it alongside PATH. Used by the
// controller once the transport endpoint address is known — which only
// happens after Enter has already created the temp directory the
// address is derived from.
func (e *Environment) SetVar(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.entered {
		return ErrNotEntered
	}
	e.setEnv(name, value)
	return nil
}

// setEnv records the prior value of name (or its absence) before
// overwriting it, so Exit can restore it exactly.
func (e *Environment) setEnv(name, value string) {
	prior, had := os.LookupEnv(name)
	e.mutations = append(e.mutations, Mutation{Name: name, Had: had, Prior: prior})
	_ = os.Setenv(name, value)
}

// Exit restores every mutated variable to its pre-Enter value (or unsets it
// if it was absent), then recursively removes the temp directory. It runs
// every cleanup step even if earlier steps fail, collecting failures rather
// than aborting, and is safe to call multiple times (idempotent no-op
// after the first successful call, mirroring the teacher's
// "cleaned bool" idempotent-cleanup-guard in cmd/exec.go).
func (e *Environment) Exit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.entered {
		return nil
	}

	for i := len(e.mutations) - 1; i >= 0; i-- {
		m := e.mutations[i]
		var err error
		if m.Had {
			err = os.Setenv(m.Name, m.Prior)
		} else {
			err = os.Unsetenv(m.Name)
		}
		if err != nil {
			e.teardownErrs = append(e.teardownErrs, fmt.Errorf("restore %s: %w", m.Name, err))
		}
	}

	if e.dir != "" {
		if err := os.RemoveAll(e.dir); err != nil {
			e.teardownErrs = append(e.teardownErrs, fmt.Errorf("remove temp dir: %w", err))
		}
	}

	e.entered = false
	e.dir = ""
	e.mutations = nil

	if len(e.teardownErrs) > 0 {
		return errors.Join(e.teardownErrs...)
	}
	return nil
}

// mutatePath prepends dir to pathEnv after trimming whitespace,
// de-duplicating entries (case-insensitively on Windows), and removing any
// pre-existing occurrence of dir itself.
func mutatePath(pathEnv, dir string) string {
	sep := string(os.PathListSeparator)
	parts := filepath.SplitList(pathEnv)

	seen := make(map[string]bool, len(parts)+1)
	out := make([]string, 0, len(parts)+1)

	if dir != "" {
		out = append(out, dir)
		seen[pathKey(dir)] = true
	}

	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		key := pathKey(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}

	return strings.Join(out, sep)
}

// pathKey normalizes a single PATH entry for de-duplication comparisons:
// case-folded on Windows, since its filesystem is case-insensitive.
func pathKey(p string) string {
	p = strings.TrimSpace(p)
	if runtime.GOOS == "windows" {
		return strings.ToLower(filepath.Clean(p))
	}
	return filepath.Clean(p)
}

// NormalizePath de-duplicates pathEnv's entries (case-insensitively on
// Windows), preserving first-seen order, without adding or removing any
// directory. Used by the passthrough coordinator to build the lookup
// path a launcher searches for the real binary, derived from the PATH
// snapshot captured before Enter ever prepended the shim directory.
func NormalizePath(pathEnv string) string {
	return mutatePath(pathEnv, "")
}

// ensurePathExt makes sure ".CMD" is present in PATHEXT so Windows batch
// launchers are discoverable without an explicit extension.
func ensurePathExt(pathext string) string {
	if pathext == "" {
		return ".CMD"
	}
	for _, ext := range strings.Split(pathext, ";") {
		if strings.EqualFold(ext, ".CMD") {
			return pathext
		}
	}
	return pathext + ";.CMD"
}

// maxPathComponent is a conservative threshold below the platform path
// limit (260 on legacy Windows) past which we request a shorter alias.
const maxPathComponent = 200

// shortAlias returns dir unchanged on platforms without a practical path
// limit. On Windows, when dir threatens the legacy MAX_PATH limit, it asks
// for the short (8.3) filesystem alias via shortPathName; the POSIX build
// never needs this and always returns dir unchanged.
func shortAlias(dir string) (string, error) {
	if runtime.GOOS != "windows" || len(dir) < maxPathComponent {
		return dir, nil
	}
	return shortPathName(dir)
}

// randomSuffix returns a short hex suffix for worker-qualified directory
// names, avoiding collisions between parallel test processes beyond what
// os.MkdirTemp's own randomness already provides.
func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// WorkerPrefix builds a parallel-safe temp-directory prefix of the form
// "cmdmox-<workerID>-<pid>-", using a random hex string in place of
// workerID when workerID is empty so unrelated controllers in the same
// process never collide.
func WorkerPrefix(workerID string) string {
	if workerID == "" {
		if suffix, err := randomSuffix(); err == nil {
			workerID = suffix
		} else {
			workerID = "0"
		}
	}
	return fmt.Sprintf("cmdmox-%s-%d-", workerID, os.Getpid())
}
