package realtime

import (
	"context"
	"encoding/json"
)

// Event names used on the coordination channel.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventLights     = "lights"
	EventLightsGet  = "lights:get"

	// EventReconnecting is pushed before each transport-level reconnect
	// attempt. Its payload, when present, is the attempt number.
	EventReconnecting = "reconnecting"
)

// Event is one notification from the channel.
type Event struct {
	Name string

	// Payload is the first argument of the event, if any.
	Payload json.RawMessage

	// Err is the reason for a disconnect event.
	Err error
}

// Channel is a live connection to the coordination channel.
//
// Events are delivered in order on Events. Done is closed once the channel
// has stopped for good; Err then explains why (nil after Close).
type Channel interface {
	Events() <-chan Event
	Emit(name string) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Dialer opens a Channel. Implementations return a *ConnectionError when
// the first connection cannot be made.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Channel, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}

// Logger is the logging surface used by the transports.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
