package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Emit after the channel has been closed.
	ErrClosed = errors.New("realtime: channel closed")

	// ErrNotConnected is returned by Emit while the transport is reconnecting.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrHandshake indicates the server did not complete the Socket.IO handshake.
	ErrHandshake = errors.New("realtime: handshake failed")

	// ErrServerDisconnect indicates the server closed the namespace.
	ErrServerDisconnect = errors.New("realtime: disconnected by server")
)

// ConnectionError reports that the coordination channel could not be
// established or was lost beyond recovery.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
