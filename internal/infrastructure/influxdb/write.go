package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementPaletteApply   = "palette_apply"
	MeasurementSessionAttempt = "session_attempt"
)

// Result tag values.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// PaletteApply is one palette pass as recorded in InfluxDB.
type PaletteApply struct {
	Bridge   string
	Selector string
	Colors   int
	Devices  int

	// Unacknowledged is the number of lights that did not report "ok".
	Unacknowledged int
	Duration       time.Duration
	Failed         bool
}

// SessionAttempt is one supervisor attempt as recorded in InfluxDB.
type SessionAttempt struct {
	Bridge    string
	SessionID string
	Attempt   int
	Duration  time.Duration
	Err       error
}

// WritePaletteApply records a palette pass.
//
// Tags: bridge, selector, result (ok, partial, failed).
// Fields: colors, devices, unacknowledged, duration_ms.
func (c *Client) WritePaletteApply(p PaletteApply) {
	result := ResultOK
	switch {
	case p.Failed:
		result = ResultFailed
	case p.Unacknowledged > 0:
		result = ResultPartial
	}

	c.WritePoint(MeasurementPaletteApply,
		map[string]string{
			"bridge":   p.Bridge,
			"selector": p.Selector,
			"result":   result,
		},
		map[string]interface{}{
			"colors":         p.Colors,
			"devices":        p.Devices,
			"unacknowledged": p.Unacknowledged,
			"duration_ms":    p.Duration.Milliseconds(),
		},
	)
}

// WriteSessionAttempt records the end of a supervisor attempt.
//
// Tags: bridge, result (ok when the attempt ended without error, failed otherwise).
// Fields: session_id, attempt, duration_ms and error when present.
func (c *Client) WriteSessionAttempt(a SessionAttempt) {
	result := ResultOK
	fields := map[string]interface{}{
		"session_id":  a.SessionID,
		"attempt":     a.Attempt,
		"duration_ms": a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		result = ResultFailed
		fields["error"] = a.Err.Error()
	}

	c.WritePoint(MeasurementSessionAttempt,
		map[string]string{
			"bridge": a.Bridge,
			"result": result,
		},
		fields,
	)
}

// WritePoint writes a custom point stamped with the current time.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
