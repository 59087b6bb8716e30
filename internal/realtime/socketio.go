package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zishang520/socket.io/clients/socket/v3"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
)

const defaultHandshakeTimeout = 10 * time.Second

// Disconnect reasons reported by the Socket.IO client.
const (
	reasonClientDisconnect = "io client disconnect"
	reasonServerDisconnect = "io server disconnect"
)

// sioClient is the part of a Socket.IO client connection the channel drives.
type sioClient interface {
	Emit(name string) error
	Close()
}

// sioHooks receives the client's lifecycle callbacks.
type sioHooks struct {
	connect         func()
	disconnect      func(reason string)
	connectError    func(err error)
	reconnecting    func(attempt int)
	reconnectFailed func()
	event           func(name string, args []any)
}

type sioOptions struct {
	path      string
	timeout   time.Duration
	reconnect config.ReconnectConfig
}

// sioConnector starts a client connection and reports its lifecycle to h.
type sioConnector func(endpoint string, o sioOptions, h sioHooks) (sioClient, error)

// SocketIO is a Channel backed by a Socket.IO client on the default namespace.
// The client reconnects on its own; SocketIO maps its callbacks onto Events.
//
// Thread Safety: All methods are safe for concurrent use.
type SocketIO struct {
	endpoint  string
	reconnect bool
	logger    Logger

	client sioClient
	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	connected bool
	stopped   bool
	dialing   bool
	err       error

	dialed    chan error
	closeOnce sync.Once
}

// SocketIOEndpoint validates the Lumiere base URL and returns the http(s)
// URL the Socket.IO client connects to. WebSocket schemes are mapped back
// to their HTTP equivalents.
func SocketIOEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, base)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// DialSocketIO connects to the Lumiere Socket.IO endpoint and waits for the
// namespace connect before returning. The first event on the returned
// channel is EventConnect.
//
// Parameters:
//   - ctx: Bounds the initial connection only
//   - cfg: Lumiere configuration (url, socketio, buffer)
//   - logger: Optional; nil discards transport logs
//
// Returns:
//   - *SocketIO: Connected channel
//   - error: *ConnectionError if the endpoint is invalid or the connect fails
func DialSocketIO(ctx context.Context, cfg config.LumiereConfig, logger Logger) (*SocketIO, error) {
	return dialSocketIO(ctx, cfg, logger, connectSocketIO)
}

func dialSocketIO(ctx context.Context, cfg config.LumiereConfig, logger Logger, connect sioConnector) (*SocketIO, error) {
	endpoint, err := SocketIOEndpoint(cfg.URL)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: cfg.URL, Err: err}
	}
	if logger == nil {
		logger = noopLogger{}
	}

	timeout := cfg.SocketIO.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	buffer := cfg.Buffer
	if buffer < 1 {
		buffer = 1
	}

	s := &SocketIO{
		endpoint:  endpoint,
		reconnect: cfg.SocketIO.Reconnect.Enabled,
		logger:    logger,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
		dialed:    make(chan error, 1),
		dialing:   true,
	}

	path := cfg.SocketIO.Path
	if path == "" {
		path = "/socket.io/"
	}
	client, err := connect(endpoint, sioOptions{
		path:      path,
		timeout:   timeout,
		reconnect: cfg.SocketIO.Reconnect,
	}, s.hooks())
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: endpoint, Err: err}
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-s.dialed:
	case <-timer.C:
		err = fmt.Errorf("%w: no connect within %s", ErrHandshake, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.Close()
		return nil, &ConnectionError{Op: "dial", URL: endpoint, Err: err}
	}
	return s, nil
}

func (s *SocketIO) hooks() sioHooks {
	return sioHooks{
		connect:         s.handleConnect,
		disconnect:      s.handleDisconnect,
		connectError:    s.handleConnectError,
		reconnecting:    s.handleReconnecting,
		reconnectFailed: s.handleReconnectFailed,
		event:           s.handleEvent,
	}
}

// signalDial reports the first connect outcome to DialSocketIO. It returns
// false once that outcome has been delivered.
func (s *SocketIO) signalDial(err error) bool {
	s.mu.Lock()
	first := s.dialing
	s.dialing = false
	s.mu.Unlock()
	if first {
		s.dialed <- err
	}
	return first
}

func (s *SocketIO) handleConnect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.mu.Unlock()

	if !s.signalDial(nil) {
		s.logger.Info("socket.io reconnected")
	}
	s.push(Event{Name: EventConnect})
}

func (s *SocketIO) handleDisconnect(reason string) {
	s.mu.Lock()
	s.connected = false
	stopped := s.stopped
	s.mu.Unlock()
	if stopped || reason == reasonClientDisconnect {
		return
	}

	s.logger.Info("socket.io connection lost", "reason", reason)
	err := errors.New(reason)
	if reason == reasonServerDisconnect {
		err = fmt.Errorf("%w: %s", ErrServerDisconnect, reason)
	}
	s.push(Event{Name: EventDisconnect, Err: err})

	// The client does not reconnect after a server-side disconnect.
	if reason == reasonServerDisconnect || !s.reconnect {
		s.finish(&ConnectionError{Op: "read", URL: s.endpoint, Err: err})
	}
}

func (s *SocketIO) handleConnectError(err error) {
	if err == nil {
		err = errors.New("connect error")
	}
	if s.signalDial(fmt.Errorf("%w: %w", ErrHandshake, err)) {
		return
	}
	s.logger.Debug("socket.io connect error", "error", err)
}

func (s *SocketIO) handleReconnecting(attempt int) {
	s.logger.Debug("socket.io reconnect attempt", "attempt", attempt)
	payload, _ := json.Marshal(attempt)
	s.push(Event{Name: EventReconnecting, Payload: payload})
}

func (s *SocketIO) handleReconnectFailed() {
	s.finish(&ConnectionError{Op: "reconnect", URL: s.endpoint, Err: errors.New("reconnect attempts exhausted")})
}

func (s *SocketIO) handleEvent(name string, args []any) {
	var payload json.RawMessage
	if len(args) > 0 {
		b, err := json.Marshal(args[0])
		if err != nil {
			s.logger.Warn("dropping socket.io event", "event", name, "error", err)
			return
		}
		payload = b
	}
	s.push(Event{Name: name, Payload: payload})
}

// push delivers ev unless the channel has stopped.
func (s *SocketIO) push(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// finish stops the channel with err. The client is released by Close.
func (s *SocketIO) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.connected = false
	s.err = err
	close(s.done)
}

// Events returns the event stream.
func (s *SocketIO) Events() <-chan Event {
	return s.events
}

// Emit sends a Socket.IO event without arguments.
func (s *SocketIO) Emit(name string) error {
	s.mu.Lock()
	stopped, connected, client := s.stopped, s.connected, s.client
	s.mu.Unlock()

	if stopped {
		return ErrClosed
	}
	if !connected || client == nil {
		return ErrNotConnected
	}
	return client.Emit(name)
}

// Done is closed once the channel has stopped for good.
func (s *SocketIO) Done() <-chan struct{} {
	return s.done
}

// Err returns why the channel stopped, or nil if it is running or was closed.
func (s *SocketIO) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close disconnects from the server and stops reconnecting.
func (s *SocketIO) Close() error {
	s.closeOnce.Do(func() {
		s.finish(nil)

		s.mu.Lock()
		client := s.client
		s.mu.Unlock()
		if client != nil {
			client.Close()
		}
	})
	return nil
}

// zsocket adapts a socket.io client Socket to sioClient.
type zsocket struct {
	manager *socket.Manager
	sock    *socket.Socket
	once    sync.Once
}

func (z *zsocket) Emit(name string) error {
	return z.sock.Emit(name)
}

func (z *zsocket) Close() {
	z.once.Do(func() {
		z.sock.Disconnect()
	})
}

// connectSocketIO opens a Socket.IO client on the default namespace.
func connectSocketIO(endpoint string, o sioOptions, h sioHooks) (sioClient, error) {
	opts := socket.DefaultOptions()
	opts.SetPath(o.path)
	opts.SetTimeout(o.timeout)
	opts.SetAutoConnect(false)
	opts.SetReconnection(o.reconnect.Enabled)
	if o.reconnect.MaxAttempts > 0 {
		opts.SetReconnectionAttempts(float64(o.reconnect.MaxAttempts))
	} else {
		opts.SetReconnectionAttempts(math.Inf(1))
	}
	if o.reconnect.InitialDelay > 0 {
		opts.SetReconnectionDelay(float64(o.reconnect.InitialDelay.Milliseconds()))
	}
	if o.reconnect.MaxDelay > 0 {
		opts.SetReconnectionDelayMax(float64(o.reconnect.MaxDelay.Milliseconds()))
	}

	manager := socket.NewManager(endpoint, opts)
	sock := manager.Socket("/", opts)

	manager.On("reconnect_attempt", func(args ...any) {
		h.reconnecting(attemptNumber(args))
	})
	manager.On("reconnect_failed", func(...any) {
		h.reconnectFailed()
	})
	sock.On("connect", func(...any) {
		h.connect()
	})
	sock.On("disconnect", func(args ...any) {
		h.disconnect(firstString(args))
	})
	sock.On("connect_error", func(args ...any) {
		h.connectError(firstError(args))
	})
	sock.On(EventLights, func(args ...any) {
		h.event(EventLights, args)
	})

	sock.Connect()
	return &zsocket{manager: manager, sock: sock}, nil
}

func attemptNumber(args []any) int {
	if len(args) == 0 {
		return 0
	}
	switch n := args[0].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func firstString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func firstError(args []any) error {
	if len(args) == 0 {
		return nil
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}
