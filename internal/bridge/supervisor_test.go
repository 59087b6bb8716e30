package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lifx"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// mockDialer hands out channels in turn; the last entry repeats.
type mockDialer struct {
	mu       sync.Mutex
	channels []*mockChannel
	errs     []error
	calls    int
}

func (d *mockDialer) Dial(_ context.Context) (realtime.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if len(d.channels) == 0 {
		return nil, &realtime.ConnectionError{Op: "dial", Err: realtime.ErrHandshake}
	}
	return d.channels[min(i, len(d.channels)-1)], nil
}

func (d *mockDialer) getCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func newTestSupervisor(t *testing.T, cfg SupervisorConfig) *Supervisor {
	t.Helper()
	if cfg.Settings.Selector == "" {
		cfg.Settings = testSettings()
	}
	s, err := NewSupervisor(cfg)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	return s
}

func runWithTimeout(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Run(ctx)
	if ctx.Err() != nil {
		t.Fatal("Run() did not finish before the test timeout")
	}
	return err
}

func TestNewSupervisor(t *testing.T) {
	t.Run("missing dependencies", func(t *testing.T) {
		if _, err := NewSupervisor(SupervisorConfig{Dialer: &mockDialer{}}); !errors.Is(err, ErrMissingDependency) {
			t.Errorf("NewSupervisor() without lights error = %v, want ErrMissingDependency", err)
		}
		if _, err := NewSupervisor(SupervisorConfig{Lights: &mockLights{}}); !errors.Is(err, ErrMissingDependency) {
			t.Errorf("NewSupervisor() without dialer error = %v, want ErrMissingDependency", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewSupervisor(SupervisorConfig{Lights: &mockLights{}, Dialer: &mockDialer{}, RetryDelay: -1})
		if err != nil {
			t.Fatalf("NewSupervisor() error = %v", err)
		}
		if s.maxAttempts != DefaultMaxAttempts {
			t.Errorf("maxAttempts = %d, want %d", s.maxAttempts, DefaultMaxAttempts)
		}
		if s.retryDelay != DefaultRetryDelay {
			t.Errorf("retryDelay = %v, want %v", s.retryDelay, DefaultRetryDelay)
		}
	})
}

func TestSupervisor_InventoryFailuresExhaustBudget(t *testing.T) {
	ml := &mockLights{listErr: &lifx.InventoryError{StatusCode: 503, Message: "unavailable"}}
	dialer := &mockDialer{}
	obs := &mockObserver{}
	logger := &mockLogger{}

	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 5,
		RetryDelay:  time.Millisecond,
		Lights:      ml,
		Dialer:      dialer,
		Observer:    obs,
		Logger:      logger,
	})

	err := runWithTimeout(t, s)
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetryBudgetExhausted", err)
	}
	var invErr *lifx.InventoryError
	if !errors.As(err, &invErr) {
		t.Errorf("Run() error = %v, want it to wrap *lifx.InventoryError", err)
	}

	if got := ml.getListCalls(); got != 5 {
		t.Errorf("ListLights calls = %d, want 5", got)
	}
	if got := dialer.getCalls(); got != 0 {
		t.Errorf("Dial calls = %d, want 0 (inventory precedes connect)", got)
	}
	if got := logger.count("debug: session attempt failed"); got != 5 {
		t.Errorf("attempt traces = %d, want 5", got)
	}

	attempts := obs.getAttempts()
	if len(attempts) != 5 {
		t.Fatalf("AttemptFinished calls = %d, want 5", len(attempts))
	}
	for i, a := range attempts {
		if a.Attempt != i+1 || a.Err == nil || a.SessionID == "" {
			t.Errorf("attempt[%d] = %+v", i, a)
		}
	}
}

func TestSupervisor_ConnectionFailuresExhaustBudget(t *testing.T) {
	ml := &mockLights{inventories: []lights.Inventory{{{ID: "1", Label: "A"}}}}
	dialer := &mockDialer{}

	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Lights:      ml,
		Dialer:      dialer,
	})

	err := runWithTimeout(t, s)
	var connErr *realtime.ConnectionError
	if !errors.Is(err, ErrRetryBudgetExhausted) || !errors.As(err, &connErr) {
		t.Fatalf("Run() error = %v, want exhausted budget wrapping *realtime.ConnectionError", err)
	}
	if got := ml.getListCalls(); got != 3 {
		t.Errorf("ListLights calls = %d, want 3 (one per attempt)", got)
	}
	if got := dialer.getCalls(); got != 3 {
		t.Errorf("Dial calls = %d, want 3", got)
	}
}

func TestSupervisor_RetriesEndedSessions(t *testing.T) {
	first := newMockChannel()
	first.send(connectEvent(), lightsEvent("red"))
	first.stop(errTransport)

	second := newMockChannel()
	second.send(connectEvent(), lightsEvent("blue"))
	second.stop(errTransport)

	ml := &mockLights{inventories: []lights.Inventory{{{ID: "1", Label: "A"}}}}
	dialer := &mockDialer{
		channels: []*mockChannel{first, second},
	}

	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		Lights:      ml,
		Dialer:      dialer,
	})

	err := runWithTimeout(t, s)
	if !errors.Is(err, ErrRetryBudgetExhausted) || !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want exhausted budget wrapping the transport error", err)
	}

	calls := ml.getSetCalls()
	if len(calls) != 2 || calls[0][0].Color != "red" || calls[1][0].Color != "blue" {
		t.Errorf("SetStates calls = %+v, want red then blue", calls)
	}
	if got := ml.getListCalls(); got != 2 {
		t.Errorf("ListLights calls = %d, want 2 (inventory refetched per attempt)", got)
	}
	if !first.isClosed() || !second.isClosed() {
		t.Error("channels were not closed after their sessions ended")
	}
}

func TestSupervisor_RecoversAfterDialFailure(t *testing.T) {
	ch := newMockChannel()
	ch.send(connectEvent(), lightsEvent("red"))
	ch.stop(errTransport)

	ml := &mockLights{inventories: []lights.Inventory{{{ID: "1", Label: "A"}}}}
	dialer := &mockDialer{
		channels: []*mockChannel{ch},
		errs:     []error{&realtime.ConnectionError{Op: "dial", Err: realtime.ErrHandshake}},
	}

	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		Lights:      ml,
		Dialer:      dialer,
	})

	_ = runWithTimeout(t, s)

	if got := len(ml.getSetCalls()); got != 1 {
		t.Errorf("SetStates calls = %d, want 1 from the second attempt", got)
	}
}

func TestSupervisor_ContextCancelled(t *testing.T) {
	ch := newMockChannel()
	ch.send(connectEvent())

	ml := &mockLights{inventories: []lights.Inventory{{{ID: "1", Label: "A"}}}}
	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 5,
		RetryDelay:  time.Millisecond,
		Lights:      ml,
		Dialer:      &mockDialer{channels: []*mockChannel{ch}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(ch.getEmitted()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if !ch.isClosed() {
		t.Error("channel not closed after cancel")
	}
}

func TestSupervisor_CancelledDuringRetryDelay(t *testing.T) {
	ml := &mockLights{listErr: errors.New("offline")}
	s := newTestSupervisor(t, SupervisorConfig{
		MaxAttempts: 5,
		RetryDelay:  time.Hour,
		Lights:      ml,
		Dialer:      &mockDialer{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ml.getListCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return while waiting to retry")
	}
	if got := ml.getListCalls(); got != 1 {
		t.Errorf("ListLights calls = %d, want 1", got)
	}
}
