package bridge

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lifx"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

var errTransport = errors.New("transport gave up")

func testSettings() Settings {
	return Settings{
		Selector:        "all",
		Assign:          lights.Options{Brightness: 0.85, Duration: 1},
		InventoryPolicy: config.InventoryRefetch,
	}
}

type sessionHarness struct {
	session  *Session
	channel  *mockChannel
	lights   *mockLights
	observer *mockObserver
	logger   *mockLogger
}

func newSessionHarness(t *testing.T, inv lights.Inventory, settings Settings) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		channel:  newMockChannel(),
		lights:   &mockLights{},
		observer: &mockObserver{},
		logger:   &mockLogger{},
	}
	s, err := NewSession(SessionConfig{
		ID:        "test-session",
		Settings:  settings,
		Lights:    h.lights,
		Channel:   h.channel,
		Inventory: inv,
		Observer:  h.observer,
		Logger:    h.logger,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	h.session = s
	return h
}

// run queues evs, stops the channel and runs the session to completion.
func (h *sessionHarness) run(t *testing.T, evs ...realtime.Event) error {
	t.Helper()
	h.channel.send(evs...)
	h.channel.stop(errTransport)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.session.Run(ctx)
}

func TestNewSession_MissingDependencies(t *testing.T) {
	_, err := NewSession(SessionConfig{Channel: newMockChannel()})
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("NewSession() without lights error = %v, want ErrMissingDependency", err)
	}

	_, err = NewSession(SessionConfig{Lights: &mockLights{}})
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("NewSession() without channel error = %v, want ErrMissingDependency", err)
	}
}

func TestSession_EndToEnd(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{
		{ID: "2", Label: "B"},
		{ID: "1", Label: "A"},
	})
	h := newSessionHarness(t, inv, testSettings())

	err := h.run(t, connectEvent(), lightsEvent("c1", "c2", "c1"))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want %v", err, errTransport)
	}

	if got := h.channel.getEmitted(); !reflect.DeepEqual(got, []string{realtime.EventLightsGet}) {
		t.Errorf("emitted = %v, want [lights:get]", got)
	}

	calls := h.lights.getSetCalls()
	if len(calls) != 1 {
		t.Fatalf("SetStates calls = %d, want 1", len(calls))
	}
	want := []lights.Assignment{
		{DeviceID: "1", Color: "c1", Brightness: 0.85, Duration: 1},
		{DeviceID: "2", Color: "c2", Brightness: 0.85, Duration: 1},
	}
	if !reflect.DeepEqual(calls[0], want) {
		t.Errorf("assignments = %+v, want %+v", calls[0], want)
	}

	if h.session.State() != Disconnected {
		t.Errorf("State() after Run = %v, want disconnected", h.session.State())
	}
}

func TestSession_SingleColorWrapsAround(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{
		{ID: "a", Label: "1"},
		{ID: "b", Label: "2"},
		{ID: "c", Label: "3"},
	})
	h := newSessionHarness(t, inv, testSettings())

	_ = h.run(t, connectEvent(), lightsEvent("red"))

	calls := h.lights.getSetCalls()
	if len(calls) != 1 || len(calls[0]) != 3 {
		t.Fatalf("SetStates calls = %+v, want one call with 3 assignments", calls)
	}
	for _, a := range calls[0] {
		if a.Color != "red" {
			t.Errorf("device %s color = %q, want red", a.DeviceID, a.Color)
		}
	}
}

func TestSession_EmptyPaletteIsSwallowed(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())

	err := h.run(t, connectEvent(), lightsEvent(), lightsEvent("red"))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want %v", err, errTransport)
	}

	if got := len(h.lights.getSetCalls()); got != 1 {
		t.Errorf("SetStates calls = %d, want 1", got)
	}

	applies := h.observer.getApplies()
	if len(applies) != 2 {
		t.Fatalf("PaletteApplied calls = %d, want 2", len(applies))
	}
	if !errors.Is(applies[0].Err, lights.ErrEmptyPalette) {
		t.Errorf("first apply error = %v, want ErrEmptyPalette", applies[0].Err)
	}
	if applies[1].Err != nil {
		t.Errorf("second apply error = %v, want nil", applies[1].Err)
	}
}

func TestSession_UpdateErrorDoesNotEndSession(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())
	h.lights.setErrs = []error{&lifx.UpdateError{StatusCode: 500, Message: "boom"}}

	err := h.run(t, connectEvent(), lightsEvent("red"), lightsEvent("blue"))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want the transport error", err)
	}

	if got := len(h.lights.getSetCalls()); got != 2 {
		t.Errorf("SetStates calls = %d, want 2", got)
	}
	if got := h.logger.count("error: updating lights failed"); got != 1 {
		t.Errorf("update failures logged = %d, want 1", got)
	}

	applies := h.observer.getApplies()
	var updateErr *lifx.UpdateError
	if len(applies) != 2 || !errors.As(applies[0].Err, &updateErr) || applies[1].Err != nil {
		t.Errorf("applies = %+v, want one UpdateError then success", applies)
	}
}

func TestSession_PaletteBeforeConnectIsDropped(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())

	_ = h.run(t, lightsEvent("red"), connectEvent())

	if got := len(h.lights.getSetCalls()); got != 0 {
		t.Errorf("SetStates calls = %d, want 0", got)
	}
}

func TestSession_Reconnect(t *testing.T) {
	initial := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	refreshed := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}, {ID: "2", Label: "B"}})

	tests := []struct {
		name          string
		policy        string
		wantListCalls int
		wantDevices   int
	}{
		{"refetch on reconnect", config.InventoryRefetch, 1, 2},
		{"cache across reconnects", config.InventoryCache, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.InventoryPolicy = tt.policy
			h := newSessionHarness(t, initial, settings)
			h.lights.inventories = []lights.Inventory{refreshed}

			_ = h.run(t,
				connectEvent(),
				lightsEvent("red"),
				disconnectEvent(),
				lightsEvent("green"), // dropped while disconnected
				connectEvent(),
				lightsEvent("blue"),
			)

			if got := h.lights.getListCalls(); got != tt.wantListCalls {
				t.Errorf("ListLights calls = %d, want %d", got, tt.wantListCalls)
			}

			calls := h.lights.getSetCalls()
			if len(calls) != 2 {
				t.Fatalf("SetStates calls = %d, want 2", len(calls))
			}
			if calls[0][0].Color != "red" || calls[1][0].Color != "blue" {
				t.Errorf("applied colors = %q then %q, want red then blue", calls[0][0].Color, calls[1][0].Color)
			}
			if got := len(calls[1]); got != tt.wantDevices {
				t.Errorf("devices after reconnect = %d, want %d", got, tt.wantDevices)
			}

			if got := h.channel.getEmitted(); len(got) != 2 {
				t.Errorf("emitted = %v, want lights:get on each connect", got)
			}
		})
	}
}

func TestSession_ReconnectRefetchFailureEndsSession(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())
	h.lights.listErr = &lifx.InventoryError{StatusCode: 401, Message: "unauthorized"}

	err := h.run(t, connectEvent(), disconnectEvent(), connectEvent(), lightsEvent("red"))

	var invErr *lifx.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("Run() error = %v, want *lifx.InventoryError", err)
	}
	if got := len(h.lights.getSetCalls()); got != 0 {
		t.Errorf("SetStates calls = %d, want 0", got)
	}
}

func TestSession_StateTransitions(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())

	_ = h.run(t, connectEvent(), disconnectEvent(), reconnectingEvent(1), connectEvent())

	want := []ConnectionState{Connecting, Connected, Disconnected, Connecting, Connected, Disconnected}
	if got := h.observer.getStates(); !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if got := h.logger.count("info: reconnecting to server"); got != 1 {
		t.Errorf("reconnect logs = %d, want 1", got)
	}
}

func TestSession_PaletteDroppedWhileReconnecting(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())
	h.lights.inventories = []lights.Inventory{inv}

	_ = h.run(t,
		connectEvent(),
		disconnectEvent(),
		reconnectingEvent(1),
		lightsEvent("red"),
		reconnectingEvent(2),
		connectEvent(),
		lightsEvent("blue"),
	)

	calls := h.lights.getSetCalls()
	if len(calls) != 1 || calls[0][0].Color != "blue" {
		t.Errorf("SetStates calls = %+v, want only the palette after reconnect", calls)
	}
}

func TestSession_EmptyInventorySkipsUpdate(t *testing.T) {
	h := newSessionHarness(t, lights.Inventory{}, testSettings())

	_ = h.run(t, connectEvent(), lightsEvent("red", "blue"))

	if got := len(h.lights.getSetCalls()); got != 0 {
		t.Errorf("SetStates calls = %d, want 0 for an empty inventory", got)
	}
	if got := h.logger.count("debug: no lights to update"); got != 1 {
		t.Errorf("skip logs = %d, want 1", got)
	}
	applies := h.observer.getApplies()
	if len(applies) != 1 || applies[0].Err != nil || applies[0].Devices != 0 {
		t.Errorf("applies = %+v, want one empty successful pass", applies)
	}
}

func TestSession_InvalidPayloadIsLogged(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())

	bad := realtime.Event{Name: realtime.EventLights, Payload: []byte(`{"colors": 42}`)}
	err := h.run(t, connectEvent(), bad, lightsEvent("red"))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want transport error", err)
	}

	if got := h.logger.count("warn: invalid lights message"); got != 1 {
		t.Errorf("invalid messages logged = %d, want 1", got)
	}
	if got := len(h.lights.getSetCalls()); got != 1 {
		t.Errorf("SetStates calls = %d, want 1", got)
	}
}

func TestSession_UnacknowledgedLights(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}, {ID: "2", Label: "B"}})
	h := newSessionHarness(t, inv, testSettings())
	h.lights.results = []lifx.StateResult{
		{ID: "1", Label: "A", Status: "ok"},
		{ID: "2", Label: "B", Status: "offline"},
	}

	_ = h.run(t, connectEvent(), lightsEvent("red"))

	if got := h.logger.count("warn: light did not acknowledge state"); got != 1 {
		t.Errorf("unacknowledged warnings = %d, want 1", got)
	}
	applies := h.observer.getApplies()
	if len(applies) != 1 || applies[0].Unacknowledged != 1 || applies[0].Err != nil {
		t.Errorf("applies = %+v, want one success with 1 unacknowledged", applies)
	}
}

func TestSession_EmitFailureIsNotFatal(t *testing.T) {
	inv := lights.NewInventory([]lights.Device{{ID: "1", Label: "A"}})
	h := newSessionHarness(t, inv, testSettings())
	h.channel.emitErr = realtime.ErrNotConnected

	err := h.run(t, connectEvent(), lightsEvent("red"))
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want transport error", err)
	}
	if got := len(h.lights.getSetCalls()); got != 1 {
		t.Errorf("SetStates calls = %d, want 1", got)
	}
}

func TestSession_ChannelClosedWithoutReason(t *testing.T) {
	h := newSessionHarness(t, nil, testSettings())
	h.channel.stop(nil)

	err := h.session.Run(context.Background())
	if !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Run() error = %v, want ErrChannelClosed", err)
	}
}

func TestSession_ContextCancelled(t *testing.T) {
	h := newSessionHarness(t, nil, testSettings())
	h.channel.send(connectEvent())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.session.Run(ctx) }()

	// Wait for the connect event to be handled.
	deadline := time.Now().Add(2 * time.Second)
	for len(h.channel.getEmitted()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestSession_UnknownEventIgnored(t *testing.T) {
	h := newSessionHarness(t, nil, testSettings())

	err := h.run(t, realtime.Event{Name: "chat"}, connectEvent())
	if !errors.Is(err, errTransport) {
		t.Fatalf("Run() error = %v, want transport error", err)
	}
	if got := h.logger.count("debug: ignoring event"); got != 1 {
		t.Errorf("ignored events logged = %d, want 1", got)
	}
}
