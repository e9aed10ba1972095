package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-assistant/internal/audit"
)

// SystemMetrics represents the /metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Devices       DeviceMetrics  `json:"devices"`
	Account       AccountMetrics `json:"account"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// AccountMetrics reports whether an assistant account is linked. The user
// name itself is not exposed.
type AccountMetrics struct {
	Linked       bool   `json:"linked"`
	LastLinkedAt string `json:"last_linked_at,omitempty"`
}

// handleMetrics returns runtime, transport and link status.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	ctx := r.Context()
	for _, id := range s.registry.IDs(ctx) {
		dev, ok := s.registry.Get(ctx, id)
		if !ok {
			continue
		}
		metrics.Devices.Total++
		if s.registry.IsOnline(dev) {
			metrics.Devices.Online++
		} else {
			metrics.Devices.Offline++
		}
	}

	_, metrics.Account.Linked = s.auth.LinkedUser()
	if s.audit != nil {
		res, err := s.audit.List(ctx, audit.Filter{Action: audit.ActionLink, Limit: 1})
		if err != nil {
			s.logger.Warn("reading audit trail", "error", err)
		} else if len(res.Entries) > 0 {
			metrics.Account.LastLinkedAt = res.Entries[0].CreatedAt.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
