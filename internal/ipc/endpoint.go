package ipc

import (
	"context"
	"time"
)

// Listener accepts incoming connections on an Endpoint.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	// Addr returns the logical address launchers should dial (the socket
	// path on POSIX, the pipe name on Windows).
	Addr() string
}

// Endpoint is the IPC rendezvous abstraction (Component C): "Unix socket
// vs. named pipe" are two implementations of the same interface with
// identical message semantics, so neither the server nor the client code
// above this layer ever branches on platform. Grounded on the teacher's
// internal/platform.Platform build-tag pattern (a single New() factory
// selected at compile time by //go:build).
type Endpoint interface {
	// Listen binds to the logical path and returns a Listener. On POSIX,
	// path is a filesystem path for a Unix domain socket; any stale socket
	// file there is removed first. On Windows, path is hashed into a
	// named-pipe name so the same logical value works on both platforms.
	Listen(path string) (Listener, error)

	// Dial connects to the endpoint bound at path within the given
	// timeout.
	Dial(ctx context.Context, path string, timeout time.Duration) (Conn, error)
}

// New returns the Endpoint implementation for the current platform.
func New() Endpoint {
	return newEndpoint()
}
