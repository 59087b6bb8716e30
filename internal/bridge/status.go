package bridge

import (
	"sync"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
)

// Snapshot is a point-in-time view of the bridge, served by the status API
// and folded into health reports.
type Snapshot struct {
	BridgeID        string         `json:"bridge_id"`
	State           string         `json:"state"`
	SessionID       string         `json:"session_id,omitempty"`
	Attempt         int            `json:"attempt"`
	Devices         int            `json:"devices"`
	PalettesApplied uint64         `json:"palettes_applied"`
	ApplyFailures   uint64         `json:"apply_failures"`
	LastPalette     lights.Palette `json:"last_palette,omitempty"`
	LastApply       *time.Time     `json:"last_apply,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
}

// Status records bridge activity in memory. It implements Observer.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Status struct {
	mu sync.RWMutex

	bridgeID  string
	state     ConnectionState
	sessionID string
	attempt   int
	devices   int
	applied   uint64
	failures  uint64
	palette   lights.Palette
	lastApply time.Time
	lastError string
	startedAt time.Time
}

// NewStatus creates an empty Status for the given bridge.
func NewStatus(bridgeID string) *Status {
	return &Status{
		bridgeID:  bridgeID,
		state:     Disconnected,
		startedAt: time.Now(),
	}
}

// State returns the current connection state.
func (s *Status) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the recorded state.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		BridgeID:        s.bridgeID,
		State:           s.state.String(),
		SessionID:       s.sessionID,
		Attempt:         s.attempt,
		Devices:         s.devices,
		PalettesApplied: s.applied,
		ApplyFailures:   s.failures,
		LastError:       s.lastError,
		StartedAt:       s.startedAt,
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
	}
	if len(s.palette) > 0 {
		snap.LastPalette = append(lights.Palette(nil), s.palette...)
	}
	if !s.lastApply.IsZero() {
		t := s.lastApply
		snap.LastApply = &t
	}
	return snap
}

func (s *Status) SessionStarted(sessionID string, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.attempt = attempt
}

func (s *Status) StateChanged(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Status) InventoryLoaded(devices int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
}

func (s *Status) PaletteApplied(r ApplyResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastApply = time.Now()
	if r.Err != nil {
		s.failures++
		s.lastError = r.Err.Error()
		return
	}
	s.applied++
	s.palette = append(lights.Palette(nil), r.Palette...)
}

func (s *Status) AttemptFinished(r AttemptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
	if r.Err != nil {
		s.lastError = r.Err.Error()
	}
}
