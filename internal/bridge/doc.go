// Package bridge runs the Lumiere to LIFX bridge.
//
// A Supervisor drives repeated session attempts within a fixed retry
// budget. Each attempt fetches the light inventory, opens the
// coordination channel and hands both to a Session, which consumes
// channel events one at a time:
//
//	connect    → Connected, emit "lights:get"
//	lights     → distribute palette, apply one batch to LIFX
//	disconnect → Disconnected
//
// Update failures are logged and never end a session. Inventory and
// channel failures end the attempt and are retried by the Supervisor.
//
// Activity is reported to an Observer; Status, the Prometheus metrics in
// the api package and Telemetry (InfluxDB) are the observers main wires in.
package bridge
