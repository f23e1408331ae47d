package passthrough_test

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdmox/cmdmox/internal/passthrough"
	"github.com/cmdmox/cmdmox/internal/types"
)

func TestPrepareRequestAndFinalizeRoundTrip(t *testing.T) {
	tbl := passthrough.NewTable()
	exp := &types.Expectation{Command: "git"}
	inv := types.Invocation{ID: "inv-1", Command: "git", Args: []string{"status"}}

	req := tbl.PrepareRequest(exp, inv, "/usr/bin/git", map[string]string{"X": "1"}, 0)
	assert.Equal(t, "inv-1", req.InvocationID)
	assert.Equal(t, "/usr/bin/git", req.LookupPath)
	assert.Equal(t, passthrough.DefaultExecutionTimeout, req.Timeout)
	assert.Equal(t, 1, tbl.Len())

	result := types.PassthroughResult{InvocationID: "inv-1", Stdout: "clean", ExitCode: 0}
	finalized, gotExp, err := tbl.Finalize(result)
	require.NoError(t, err)
	assert.Same(t, exp, gotExp)
	assert.Equal(t, "git", finalized.Command)
	assert.Equal(t, "clean", finalized.Stdout)
	assert.Equal(t, 0, tbl.Len())
}

func TestFinalizeUnknownInvocationErrors(t *testing.T) {
	tbl := passthrough.NewTable()
	_, _, err := tbl.Finalize(types.PassthroughResult{InvocationID: "missing"})
	assert.ErrorIs(t, err, passthrough.ErrUnknownInvocation)
}

func TestPrepareRequestHonorsExplicitTimeout(t *testing.T) {
	tbl := passthrough.NewTable()
	req := tbl.PrepareRequest(&types.Expectation{}, types.Invocation{ID: "inv-2"}, "", nil, 2*time.Second)
	assert.Equal(t, 2*time.Second, req.Timeout)
}

func TestSweeperEvictsExpiredEntries(t *testing.T) {
	tbl := passthrough.NewTableWithTTL(time.Millisecond)
	tbl.PrepareRequest(&types.Expectation{}, types.Invocation{ID: "inv-3"}, "", nil, 0)

	stop := tbl.StartSweeper(5 * time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool {
		return tbl.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestExitCodeFromErrorNilIsZero(t *testing.T) {
	assert.Equal(t, 0, passthrough.ExitCodeFromError(nil))
}

func TestExitCodeFromErrorNonExitErrorIsOne(t *testing.T) {
	assert.Equal(t, 1, passthrough.ExitCodeFromError(errors.New("boom")))
}

func TestExitCodeFromErrorRealProcess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	err := cmd.Run()
	require.Error(t, err)
	assert.Equal(t, 7, passthrough.ExitCodeFromError(err))
}

func TestExitCodeForStartError(t *testing.T) {
	assert.Equal(t, 0, passthrough.ExitCodeForStartError(nil))
	assert.Equal(t, 127, passthrough.ExitCodeForStartError(errors.New(`exec: "nope": executable file not found in $PATH`)))
	assert.Equal(t, 126, passthrough.ExitCodeForStartError(errors.New("fork/exec /tmp/x: permission denied")))
	assert.Equal(t, 1, passthrough.ExitCodeForStartError(errors.New("something else")))
}
