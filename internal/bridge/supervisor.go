package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// Default retry budget.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 5 * time.Second
)

// SupervisorConfig holds the Supervisor's collaborators and retry budget.
type SupervisorConfig struct {
	Settings Settings

	// MaxAttempts bounds the number of session attempts per Run.
	MaxAttempts int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	Lights   LightsAPI
	Dialer   realtime.Dialer
	Observer Observer
	Logger   Logger
}

// Supervisor runs sessions within a bounded retry budget.
type Supervisor struct {
	settings    Settings
	maxAttempts int
	retryDelay  time.Duration
	lights      LightsAPI
	dialer      realtime.Dialer
	observer    Observer
	logger      Logger
}

// NewSupervisor validates cfg and applies defaults.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Lights == nil || cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: supervisor needs a lights API and a dialer", ErrMissingDependency)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
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

	return &Supervisor{
		settings:    cfg.Settings,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		lights:      cfg.Lights,
		dialer:      cfg.Dialer,
		observer:    cfg.Observer,
		logger:      cfg.Logger,
	}, nil
}

// Run blocks for the lifetime of the bridge. Each attempt fetches the
// inventory, dials the channel and runs a session until it ends.
//
// Returns:
//   - nil when ctx is cancelled
//   - error wrapping ErrRetryBudgetExhausted and the last attempt's error otherwise
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		err := s.runAttempt(ctx, attempt)
		if err == nil || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(context.Cause(ctx))
		}

		s.logger.Debug("session attempt failed",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err,
		)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(uint(s.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Info("retrying session", "next_attempt", attempt+1, "delay", next)
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, attempt, err)
}

func (s *Supervisor) runAttempt(ctx context.Context, attempt int) (err error) {
	id := uuid.NewString()
	start := time.Now()

	s.observer.SessionStarted(id, attempt)
	defer func() {
		s.observer.AttemptFinished(AttemptResult{
			SessionID: id,
			Attempt:   attempt,
			Duration:  time.Since(start),
			Err:       err,
		})
	}()

	s.logger.Info("starting session", "session_id", id, "attempt", attempt, "selector", s.settings.Selector)

	inv, err := s.lights.ListLights(ctx, s.settings.Selector)
	if err != nil {
		return fmt.Errorf("fetching inventory: %w", err)
	}
	s.observer.InventoryLoaded(len(inv))
	s.logger.Info("inventory loaded", "session_id", id, "devices", len(inv))

	ch, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil && !errors.Is(cerr, realtime.ErrClosed) {
			s.logger.Warn("closing channel failed", "session_id", id, "error", cerr)
		}
	}()

	session, err := NewSession(SessionConfig{
		ID:        id,
		Settings:  s.settings,
		Lights:    s.lights,
		Channel:   ch,
		Inventory: inv,
		Observer:  s.observer,
		Logger:    s.logger,
	})
	if err != nil {
		return err
	}

	if err := session.Run(ctx); err != nil {
		return fmt.Errorf("session ended: %w", err)
	}
	return nil
}
