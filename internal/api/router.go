package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/bridge"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	return r
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
	Version    string `json:"version"`
}

// handleHealth reports ok only while the coordination channel is connected.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.status.State()
	resp := HealthResponse{
		Status:     "ok",
		Connection: state.String(),
		Version:    s.version,
	}
	if state != bridge.Connected {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	Bridge    bridge.Snapshot `json:"bridge"`
	Runtime   RuntimeMetrics  `json:"runtime"`
	MQTT      *DependencyInfo `json:"mqtt,omitempty"`
	InfluxDB  *DependencyInfo `json:"influxdb,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// DependencyInfo describes an optional dependency.
type DependencyInfo struct {
	Connected bool `json:"connected"`
}

// handleStatus returns a JSON snapshot of the bridge.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatusResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Bridge:    s.status.Snapshot(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
			UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		},
	}
	if s.mqtt != nil {
		resp.MQTT = &DependencyInfo{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		resp.InfluxDB = &DependencyInfo{Connected: s.influx.IsConnected()}
	}

	writeJSON(w, http.StatusOK, resp)
}
