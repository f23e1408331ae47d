package environment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox/internal/environment"
)

func TestEnterExitRestoresPathAndRemovesDir(t *testing.T) {
	originalPath := os.Getenv("PATH")
	originalSocket, hadSocket := os.LookupEnv("CMDMOX_IPC_SOCKET")
	t.Cleanup(func() {
		_ = os.Setenv("PATH", originalPath)
		if hadSocket {
			_ = os.Setenv("CMDMOX_IPC_SOCKET", originalSocket)
		} else {
			_ = os.Unsetenv("CMDMOX_IPC_SOCKET")
		}
	})

	env := environment.New("cmdmox-test-")
	require.NoError(t, env.Enter("CMDMOX_IPC_SOCKET", "/tmp/sock"))

	dir := env.Dir()
	require.NotEmpty(t, dir)
	assert.True(t, filepath.IsAbs(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Contains(t, filepath.SplitList(os.Getenv("PATH")), dir)
	assert.Equal(t, "/tmp/sock", os.Getenv("CMDMOX_IPC_SOCKET"))

	require.NoError(t, env.Exit())

	assert.Equal(t, originalPath, os.Getenv("PATH"))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))

	if hadSocket {
		assert.Equal(t, originalSocket, os.Getenv("CMDMOX_IPC_SOCKET"))
	} else {
		_, has := os.LookupEnv("CMDMOX_IPC_SOCKET")
		assert.False(t, has)
	}
}

func TestEnterNotReentrant(t *testing.T) {
	env := environment.New("cmdmox-test-")
	require.NoError(t, env.Enter("", ""))
	defer env.Exit() //nolint:errcheck

	err := env.Enter("", "")
	assert.ErrorIs(t, err, environment.ErrAlreadyEntered)
}

func TestExitWithoutEnterIsNoop(t *testing.T) {
	env := environment.New("cmdmox-test-")
	assert.NoError(t, env.Exit())
}

func TestExitIsIdempotent(t *testing.T) {
	env := environment.New("cmdmox-test-")
	require.NoError(t, env.Enter("", ""))
	require.NoError(t, env.Exit())
	assert.NoError(t, env.Exit())
}

func TestPathDeduplicatesAndRemovesPriorOccurrence(t *testing.T) {
	dir := t.TempDir()
	original := os.Getenv("PATH")
	t.Cleanup(func() { _ = os.Setenv("PATH", original) })
	sep := string(os.PathListSeparator)
	_ = os.Setenv("PATH", dir+sep+original+sep+dir)

	env := environment.New("cmdmox-test-")
	require.NoError(t, env.Enter("", ""))
	defer env.Exit() //nolint:errcheck

	parts := filepath.SplitList(os.Getenv("PATH"))
	count := 0
	for _, p := range parts {
		if p == dir {
			count++
		}
	}
	// The manually-added dir appears twice in PATH before Enter and is not
	// the environment's own temp dir, so it should appear exactly once
	// afterwards (deduplicated, not dropped).
	assert.Equal(t, 1, count)
}

func TestSetVarTracksMutationForRestoreOnExit(t *testing.T) {
	original, had := os.LookupEnv("CMDMOX_IPC_TIMEOUT")
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("CMDMOX_IPC_TIMEOUT", original)
		} else {
			_ = os.Unsetenv("CMDMOX_IPC_TIMEOUT")
		}
	})

	env := environment.New("cmdmox-test-")
	require.NoError(t, env.Enter("", ""))

	require.NoError(t, env.SetVar("CMDMOX_IPC_TIMEOUT", "5"))
	assert.Equal(t, "5", os.Getenv("CMDMOX_IPC_TIMEOUT"))

	require.NoError(t, env.Exit())
	if had {
		assert.Equal(t, original, os.Getenv("CMDMOX_IPC_TIMEOUT"))
	} else {
		_, has := os.LookupEnv("CMDMOX_IPC_TIMEOUT")
		assert.False(t, has)
	}
}

func TestSetVarBeforeEnterErrors(t *testing.T) {
	env := environment.New("cmdmox-test-")
	assert.ErrorIs(t, env.SetVar("X", "y"), environment.ErrNotEntered)
}

func TestWorkerPrefixIsStable(t *testing.T) {
	p := environment.WorkerPrefix("w1")
	assert.Contains(t, p, "w1")
	assert.Contains(t, p, "cmdmox-")
}
