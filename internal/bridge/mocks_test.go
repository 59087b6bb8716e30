package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lifx"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// mockChannel implements realtime.Channel for testing.
type mockChannel struct {
	events chan realtime.Event
	done   chan struct{}

	mu      sync.Mutex
	err     error
	emitted []string
	emitErr error
	closed  bool
	stopped bool
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		events: make(chan realtime.Event, 64),
		done:   make(chan struct{}),
	}
}

func (m *mockChannel) send(evs ...realtime.Event) {
	for _, ev := range evs {
		m.events <- ev
	}
}

// stop ends the channel with err, as a transport giving up would.
func (m *mockChannel) stop(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.err = err
	close(m.done)
}

func (m *mockChannel) Events() <-chan realtime.Event { return m.events }
func (m *mockChannel) Done() <-chan struct{}         { return m.done }

func (m *mockChannel) Emit(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, name)
	return m.emitErr
}

func (m *mockChannel) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockChannel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop(nil)
	return nil
}

func (m *mockChannel) getEmitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.emitted...)
}

func (m *mockChannel) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockLights implements LightsAPI for testing.
type mockLights struct {
	mu sync.Mutex

	// inventories are returned in turn; the last one repeats.
	inventories []lights.Inventory
	listErr     error
	listCalls   int

	setErrs  []error
	results  []lifx.StateResult
	setCalls [][]lights.Assignment
}

func (m *mockLights) ListLights(_ context.Context, _ string) (lights.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.inventories) == 0 {
		return lights.Inventory{}, nil
	}
	i := min(m.listCalls-1, len(m.inventories)-1)
	return m.inventories[i], nil
}

func (m *mockLights) SetStates(_ context.Context, assignments []lights.Assignment) ([]lifx.StateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.setCalls)
	m.setCalls = append(m.setCalls, append([]lights.Assignment(nil), assignments...))
	if call < len(m.setErrs) && m.setErrs[call] != nil {
		return nil, m.setErrs[call]
	}
	return m.results, nil
}

func (m *mockLights) getListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockLights) getSetCalls() [][]lights.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]lights.Assignment(nil), m.setCalls...)
}

// mockObserver records observer callbacks.
type mockObserver struct {
	mu       sync.Mutex
	states   []ConnectionState
	applies  []ApplyResult
	attempts []AttemptResult
	sessions []string
	devices  []int
}

func (m *mockObserver) SessionStarted(id string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, id)
}

func (m *mockObserver) StateChanged(state ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockObserver) InventoryLoaded(devices int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = append(m.devices, devices)
}

func (m *mockObserver) PaletteApplied(r ApplyResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies = append(m.applies, r)
}

func (m *mockObserver) AttemptFinished(r AttemptResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, r)
}

func (m *mockObserver) getApplies() []ApplyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ApplyResult(nil), m.applies...)
}

func (m *mockObserver) getAttempts() []AttemptResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AttemptResult(nil), m.attempts...)
}

func (m *mockObserver) getStates() []ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ConnectionState(nil), m.states...)
}

// mockLogger records log entries as "level: msg".
type mockLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *mockLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *mockLogger) count(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e == entry {
			n++
		}
	}
	return n
}

func connectEvent() realtime.Event    { return realtime.Event{Name: realtime.EventConnect} }
func disconnectEvent() realtime.Event { return realtime.Event{Name: realtime.EventDisconnect} }

func reconnectingEvent(attempt int) realtime.Event {
	return realtime.Event{Name: realtime.EventReconnecting, Payload: []byte(strconv.Itoa(attempt))}
}

func lightsEvent(colors ...string) realtime.Event {
	if colors == nil {
		colors = []string{}
	}
	payload, err := json.Marshal(map[string][]string{"colors": colors})
	if err != nil {
		panic(fmt.Sprintf("encoding lights event: %v", err))
	}
	return realtime.Event{Name: realtime.EventLights, Payload: payload}
}
