package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single message to guard against a misbehaving
// peer exhausting memory; invocations carrying this much stdio are not a
// realistic test scenario.
const maxFrameBytes = 32 * 1024 * 1024

// Conn is the minimal duplex byte-stream every Endpoint connection
// implements. net.Conn satisfies it directly (used by the POSIX Unix
// socket endpoint); the Windows named-pipe endpoint implements it over a
// raw file handle without needing the rest of net.Conn's surface.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// readFrame reads one length-prefixed frame from conn: a 4-byte
// big-endian length followed by that many bytes of payload. Grounded on
// nayrosk-claude-cowork-service/pipe/protocol.go's ReadMessage.
func readFrame(conn Conn) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, fmt.Errorf("ipc: read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(lenBuf)
	if length == 0 {
		return nil, fmt.Errorf("ipc: zero-length frame")
	}
	if length > maxFrameBytes {
		return nil, fmt.Errorf("ipc: frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, fmt.Errorf("ipc: read payload (%d bytes): %w", length, err)
	}
	return payload, nil
}

// writeFrame writes data as a single length-prefixed frame in one Write
// call, preventing interleaving when multiple goroutines share a
// connection's write side (they shouldn't, but a single syscall makes it
// safe regardless).
func writeFrame(conn Conn, data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	_, err := conn.Write(buf)
	if err != nil {
		return fmt.Errorf("ipc: write frame: %w", err)
	}
	return nil
}

// ReadMessage reads and decodes one Message from conn, sanitizing its
// string fields and rejecting payloads that fail to parse as JSON.
func ReadMessage(conn Conn) (Message, error) {
	payload, err := readFrame(conn)
	if err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("ipc: malformed JSON message: %w", err)
	}
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("ipc: message missing required field %q", "kind")
	}
	return msg.Sanitize(), nil
}

// WriteMessage sanitizes and encodes msg, then writes it as one frame.
func WriteMessage(conn Conn, msg Message) error {
	data, err := json.Marshal(msg.Sanitize())
	if err != nil {
		return fmt.Errorf("ipc: marshal message: %w", err)
	}
	return writeFrame(conn, data)
}
