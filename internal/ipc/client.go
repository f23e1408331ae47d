package ipc

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// DefaultTimeout is the per-operation timeout used when the launcher's
// environment does not specify CMDMOX_IPC_TIMEOUT.
const DefaultTimeout = 5 * time.Second

// Client is the launcher-side connection to a controller's IPC endpoint:
// bounded-retry connect, and a timeout honored independently on connect,
// send, and receive.
type Client struct {
	endpoint Endpoint
	addr     string
	timeout  time.Duration
	conn     Conn
}

// maxConnectAttempts bounds how many times Connect retries before giving
// up with a TransportError-class failure.
const maxConnectAttempts = 8

// NewClient returns a Client for addr using timeout as the per-operation
// budget.
func NewClient(endpoint Endpoint, addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{endpoint: endpoint, addr: addr, timeout: timeout}
}

// Connect dials addr with bounded retries and linear-with-jitter backoff.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		conn, err := c.endpoint.Dial(ctx, c.addr, c.timeout)
		if err == nil {
			c.conn = conn
			return nil
		}
		lastErr = err

		base := time.Duration(attempt+1) * 20 * time.Millisecond
		jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond))) //nolint:gosec // timing jitter, not security-sensitive
		select {
		case <-ctx.Done():
			return fmt.Errorf("ipc: connect to %s: %w", c.addr, ctx.Err())
		case <-time.After(base + jitter):
		}
	}
	return fmt.Errorf("ipc: connect to %s after %d attempts: %w", c.addr, maxConnectAttempts, lastErr)
}

// Send writes msg, honoring the client's timeout.
func (c *Client) Send(msg Message) error {
	if c.conn == nil {
		return fmt.Errorf("ipc: send before connect")
	}
	done := make(chan error, 1)
	go func() { done <- WriteMessage(c.conn, msg) }()
	select {
	case err := <-done:
		return err
	case <-time.After(c.timeout):
		return fmt.Errorf("ipc: send to %s: timed out after %s", c.addr, c.timeout)
	}
}

// Receive reads the next message, honoring the client's timeout.
func (c *Client) Receive() (Message, error) {
	if c.conn == nil {
		return Message{}, fmt.Errorf("ipc: receive before connect")
	}
	type result struct {
		msg Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := ReadMessage(c.conn)
		done <- result{msg, err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-time.After(c.timeout):
		return Message{}, fmt.Errorf("ipc: receive from %s: timed out after %s", c.addr, c.timeout)
	}
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
