package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lifx"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// LightsAPI is the vendor API surface the bridge drives. *lifx.Client implements it.
type LightsAPI interface {
	ListLights(ctx context.Context, selector string) (lights.Inventory, error)
	SetStates(ctx context.Context, assignments []lights.Assignment) ([]lifx.StateResult, error)
}

// Logger is the logging surface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) SessionStarted(string, int)    {}
func (noopObserver) StateChanged(ConnectionState)  {}
func (noopObserver) InventoryLoaded(int)           {}
func (noopObserver) PaletteApplied(ApplyResult)    {}
func (noopObserver) AttemptFinished(AttemptResult) {}

// Settings are the per-run parameters shared by every session.
type Settings struct {
	Selector        string
	Assign          lights.Options
	InventoryPolicy string
}

// SessionConfig holds the collaborators of one session.
type SessionConfig struct {
	ID        string
	Settings  Settings
	Lights    LightsAPI
	Channel   realtime.Channel
	Inventory lights.Inventory
	Observer  Observer
	Logger    Logger
}

type eventHandler func(ctx context.Context, ev realtime.Event) error

// Session consumes events from one coordination channel and applies
// palettes to the inventory it was given.
//
// Events are handled one at a time on the goroutine calling Run, so at most
// one update batch is in flight.
type Session struct {
	id        string
	settings  Settings
	lights    LightsAPI
	channel   realtime.Channel
	observer  Observer
	logger    Logger
	inventory lights.Inventory
	state     ConnectionState
	connects  int
	handlers  map[string]eventHandler
}

// NewSession creates a session for an open channel and a fetched inventory.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Lights == nil || cfg.Channel == nil {
		return nil, fmt.Errorf("%w: session needs a lights API and a channel", ErrMissingDependency)
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Settings.InventoryPolicy == "" {
		cfg.Settings.InventoryPolicy = config.InventoryRefetch
	}

	s := &Session{
		id:        cfg.ID,
		settings:  cfg.Settings,
		lights:    cfg.Lights,
		channel:   cfg.Channel,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		inventory: cfg.Inventory,
		state:     Disconnected,
	}
	s.handlers = map[string]eventHandler{
		realtime.EventConnect:      s.handleConnect,
		realtime.EventLights:       s.handleLights,
		realtime.EventDisconnect:   s.handleDisconnect,
		realtime.EventReconnecting: s.handleReconnecting,
	}
	return s, nil
}

// State returns the current connection state. Only meaningful from the Run goroutine.
func (s *Session) State() ConnectionState {
	return s.state
}

// Run handles channel events until the channel stops or ctx is cancelled.
//
// Returns:
//   - nil if ctx was cancelled
//   - the channel's error (or ErrChannelClosed) once the channel stops
//   - an inventory error if a reconnect refetch fails
func (s *Session) Run(ctx context.Context) error {
	s.setState(Connecting)

	for {
		select {
		case <-ctx.Done():
			s.setState(Disconnected)
			return nil

		case ev := <-s.channel.Events():
			if err := s.dispatch(ctx, ev); err != nil {
				s.setState(Disconnected)
				return err
			}

		case <-s.channel.Done():
			if err := s.drain(ctx); err != nil {
				s.setState(Disconnected)
				return err
			}
			s.setState(Disconnected)
			if err := s.channel.Err(); err != nil {
				return err
			}
			return ErrChannelClosed
		}
	}
}

// drain handles events queued before the channel stopped.
func (s *Session) drain(ctx context.Context) error {
	for {
		select {
		case ev := <-s.channel.Events():
			if err := s.dispatch(ctx, ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Session) dispatch(ctx context.Context, ev realtime.Event) error {
	h, ok := s.handlers[ev.Name]
	if !ok {
		s.logger.Debug("ignoring event", "session_id", s.id, "event", ev.Name)
		return nil
	}
	return h(ctx, ev)
}

func (s *Session) setState(state ConnectionState) {
	if s.state == state {
		return
	}
	s.state = state
	s.observer.StateChanged(state)
}

func (s *Session) handleConnect(ctx context.Context, _ realtime.Event) error {
	s.connects++
	if s.connects > 1 && s.settings.InventoryPolicy == config.InventoryRefetch {
		inv, err := s.lights.ListLights(ctx, s.settings.Selector)
		if err != nil {
			return fmt.Errorf("refreshing inventory: %w", err)
		}
		s.inventory = inv
		s.observer.InventoryLoaded(len(inv))
		s.logger.Info("inventory refreshed", "session_id", s.id, "devices", len(inv))
	}

	s.setState(Connected)
	s.logger.Info("connection established", "session_id", s.id, "connects", s.connects)

	if err := s.channel.Emit(realtime.EventLightsGet); err != nil {
		s.logger.Warn("requesting current palette failed", "session_id", s.id, "error", err)
	}
	return nil
}

func (s *Session) handleDisconnect(_ context.Context, ev realtime.Event) error {
	s.setState(Disconnected)
	if ev.Err != nil {
		s.logger.Warn("disconnected from server", "session_id", s.id, "error", ev.Err)
	} else {
		s.logger.Info("disconnected from server", "session_id", s.id)
	}
	return nil
}

// handleReconnecting marks a transport-level reconnect attempt.
func (s *Session) handleReconnecting(_ context.Context, ev realtime.Event) error {
	s.setState(Connecting)
	s.logger.Info("reconnecting to server", "session_id", s.id, "attempt", reconnectAttempt(ev))
	return nil
}

// handleLights applies one palette. Failures are logged and never end the session.
func (s *Session) handleLights(ctx context.Context, ev realtime.Event) error {
	if s.state != Connected {
		s.logger.Debug("dropping palette received while not connected", "session_id", s.id, "state", s.state.String())
		return nil
	}

	palette, err := decodePalette(ev.Payload)
	if err != nil {
		s.logger.Warn("invalid lights message", "session_id", s.id, "error", err)
		return nil
	}

	s.apply(ctx, palette)
	return nil
}

func (s *Session) apply(ctx context.Context, palette lights.Palette) {
	start := time.Now()
	result := ApplyResult{
		SessionID: s.id,
		Palette:   palette,
		Devices:   len(s.inventory),
	}
	defer func() {
		result.Duration = time.Since(start)
		s.observer.PaletteApplied(result)
	}()

	assignments, err := lights.Assign(s.inventory, palette, s.settings.Assign)
	if err != nil {
		result.Err = err
		if errors.Is(err, lights.ErrEmptyPalette) {
			s.logger.Warn("ignoring palette", "session_id", s.id, "error", err)
			return
		}
		s.logger.Error("distributing palette failed", "session_id", s.id, "error", err)
		return
	}

	if len(assignments) == 0 {
		s.logger.Debug("no lights to update", "session_id", s.id, "selector", s.settings.Selector)
		return
	}

	s.logger.Info("updating lights", "session_id", s.id, "colors", len(palette), "devices", len(assignments))

	results, err := s.lights.SetStates(ctx, assignments)
	if err != nil {
		result.Err = err
		s.logger.Error("updating lights failed", "session_id", s.id, "error", err)
		return
	}

	for _, r := range results {
		if !r.OK() {
			result.Unacknowledged++
			s.logger.Warn("light did not acknowledge state",
				"session_id", s.id,
				"light_id", r.ID,
				"label", r.Label,
				"status", r.Status,
			)
		}
	}
}
