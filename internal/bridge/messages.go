package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/realtime"
)

// lightsMessage is the payload of a "lights" event.
type lightsMessage struct {
	Colors []lights.Color `json:"colors"`
}

// decodePalette extracts the palette from a "lights" event payload.
func decodePalette(payload []byte) (lights.Palette, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("decoding palette: empty payload")
	}
	var msg lightsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decoding palette: %w", err)
	}
	return lights.Palette(msg.Colors), nil
}

// reconnectAttempt returns the attempt number carried by a "reconnecting"
// event, or 0 when the transport does not report one.
func reconnectAttempt(ev realtime.Event) int {
	var n int
	if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &n) != nil {
		return 0
	}
	return n
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health report.
// Topic: lumiere/bridge/{id}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge          string       `json:"bridge"`
	Timestamp       time.Time    `json:"timestamp"`
	Status          HealthStatus `json:"status"`
	Version         string       `json:"version"`
	Reason          string       `json:"reason,omitempty"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	Connection      string       `json:"connection"`
	SessionID       string       `json:"session_id,omitempty"`
	Devices         int          `json:"devices"`
	PalettesApplied uint64       `json:"palettes_applied"`
	ApplyFailures   uint64       `json:"apply_failures"`
}
