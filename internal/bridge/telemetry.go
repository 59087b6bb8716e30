package bridge

import (
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/influxdb"
)

// TelemetryWriter stores bridge points. *influxdb.Client implements it.
type TelemetryWriter interface {
	WritePaletteApply(p influxdb.PaletteApply)
	WriteSessionAttempt(a influxdb.SessionAttempt)
}

// Telemetry is an Observer that writes palette passes and session
// attempts to a time-series store.
type Telemetry struct {
	bridgeID string
	selector string
	writer   TelemetryWriter
}

// NewTelemetry creates a Telemetry observer tagging points with bridgeID and selector.
func NewTelemetry(bridgeID, selector string, w TelemetryWriter) *Telemetry {
	return &Telemetry{bridgeID: bridgeID, selector: selector, writer: w}
}

func (t *Telemetry) SessionStarted(string, int)   {}
func (t *Telemetry) StateChanged(ConnectionState) {}
func (t *Telemetry) InventoryLoaded(int)          {}

func (t *Telemetry) PaletteApplied(r ApplyResult) {
	t.writer.WritePaletteApply(influxdb.PaletteApply{
		Bridge:         t.bridgeID,
		Selector:       t.selector,
		Colors:         len(r.Palette.Canonical()),
		Devices:        r.Devices,
		Unacknowledged: r.Unacknowledged,
		Duration:       r.Duration,
		Failed:         r.Err != nil,
	})
}

func (t *Telemetry) AttemptFinished(r AttemptResult) {
	t.writer.WriteSessionAttempt(influxdb.SessionAttempt{
		Bridge:    t.bridgeID,
		SessionID: r.SessionID,
		Attempt:   r.Attempt,
		Duration:  r.Duration,
		Err:       r.Err,
	})
}
