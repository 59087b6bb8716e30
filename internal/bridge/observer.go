package bridge

import (
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
)

// ApplyResult describes one palette pass.
type ApplyResult struct {
	SessionID string
	Palette   lights.Palette
	Devices   int

	// Unacknowledged counts lights the API reported as not ok.
	Unacknowledged int
	Duration       time.Duration
	Err            error
}

// AttemptResult describes one supervisor attempt.
type AttemptResult struct {
	SessionID string
	Attempt   int
	Duration  time.Duration
	Err       error
}

// Observer receives bridge activity. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	SessionStarted(sessionID string, attempt int)
	StateChanged(state ConnectionState)
	InventoryLoaded(devices int)
	PaletteApplied(r ApplyResult)
	AttemptFinished(r AttemptResult)
}

// Observers fans events out to several observers. Nil entries are skipped.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) SessionStarted(id string, attempt int) {
	for _, o := range m {
		o.SessionStarted(id, attempt)
	}
}

func (m multiObserver) StateChanged(state ConnectionState) {
	for _, o := range m {
		o.StateChanged(state)
	}
}

func (m multiObserver) InventoryLoaded(devices int) {
	for _, o := range m {
		o.InventoryLoaded(devices)
	}
}

func (m multiObserver) PaletteApplied(r ApplyResult) {
	for _, o := range m {
		o.PaletteApplied(r)
	}
}

func (m multiObserver) AttemptFinished(r AttemptResult) {
	for _, o := range m {
		o.AttemptFinished(r)
	}
}
