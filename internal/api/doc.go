// Package api serves the bridge's local HTTP status endpoints.
//
// Routes:
//
//	GET /healthz   200 while the coordination channel is connected, 503 otherwise
//	GET /status    JSON snapshot of the bridge (session, devices, counters, runtime)
//	GET /metrics   Prometheus exposition of the bridge metrics
//	GET /ws        WebSocket stream of bridge activity, by subscribed channel
//
// The server follows the same lifecycle pattern as the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Metrics and the Hub returned by Server.Hub are bridge.Observers; wire them
// into the supervisor so palette passes and session attempts are counted and
// streamed.
package api
