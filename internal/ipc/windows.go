//go:build windows

package ipc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// windowsEndpoint implements Endpoint over duplex named pipes. The pipe
// name is derived deterministically by hashing the logical socket path
// (the same value exported via CMDMOX_IPC_SOCKET on POSIX), so launcher
// code never branches on platform to find the transport.
type windowsEndpoint struct{}

func newEndpoint() Endpoint {
	return &windowsEndpoint{}
}

// PipeName hashes logicalPath into a stable named-pipe name.
func PipeName(logicalPath string) string {
	sum := sha256.Sum256([]byte(logicalPath))
	return `\\.\pipe\cmdmox-` + hex.EncodeToString(sum[:])[:32]
}

const pipeBufSize = 65536

// pipeConn wraps a connected named-pipe handle as an ipc.Conn.
type pipeConn struct {
	handle windows.Handle
}

func (c *pipeConn) Read(p []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, p, &n, nil)
	if err != nil {
		return int(n), fmt.Errorf("ipc: pipe read: %w", err)
	}
	return int(n), nil
}

func (c *pipeConn) Write(p []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, p, &n, nil)
	if err != nil {
		return int(n), fmt.Errorf("ipc: pipe write: %w", err)
	}
	return int(n), nil
}

func (c *pipeConn) Close() error {
	_ = windows.FlushFileBuffers(c.handle)
	_ = windows.DisconnectNamedPipe(c.handle)
	return windows.CloseHandle(c.handle)
}

// pipeListener creates a fresh pipe instance for every Accept call,
// mirroring the classic synchronous named-pipe server loop: one instance
// is live at a time, waiting for ConnectNamedPipe, and a new instance is
// created immediately after each client connects so the name stays
// listenable.
type pipeListener struct {
	name   string
	closed bool
}

func (l *pipeListener) Addr() string { return l.name }

func (l *pipeListener) Accept() (Conn, error) {
	namep, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateNamedPipe(
		namep,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufSize,
		pipeBufSize,
		0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("ipc: create named pipe: %w", err)
	}

	if err := windows.ConnectNamedPipe(handle, nil); err != nil && err != windows.ERROR_PIPE_CONNECTED {
		_ = windows.CloseHandle(handle)
		return nil, fmt.Errorf("ipc: connect named pipe: %w", err)
	}

	return &pipeConn{handle: handle}, nil
}

func (l *pipeListener) Close() error {
	l.closed = true
	return nil
}

// Listen binds the named pipe derived from logicalPath.
func (e *windowsEndpoint) Listen(logicalPath string) (Listener, error) {
	return &pipeListener{name: PipeName(logicalPath)}, nil
}

// Dial connects to the named pipe derived from logicalPath, waiting up to
// timeout for an instance to become available.
func (e *windowsEndpoint) Dial(ctx context.Context, logicalPath string, timeout time.Duration) (Conn, error) {
	name := PipeName(logicalPath)
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		handle, err := windows.CreateFile(
			namep,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if err == nil {
			return &pipeConn{handle: handle}, nil
		}

		if err != windows.ERROR_PIPE_BUSY && err != windows.ERROR_FILE_NOT_FOUND {
			return nil, fmt.Errorf("ipc: dial pipe %s: %w", name, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("ipc: dial pipe %s: timed out", name)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
		_ = windows.WaitNamedPipe(namep, 50)
	}
}
