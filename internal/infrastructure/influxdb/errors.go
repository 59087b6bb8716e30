package influxdb

import "errors"

// Errors returned by the telemetry client. Palette and session points are
// written asynchronously, so ErrWriteFailed only reaches the SetOnError
// callback, never a Write* caller.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps the ping failure seen by Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps a batch the server rejected.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
