package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"snapexpense/internal/snapshot"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	Mode       string                `json:"mode"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

// HealthHandler reports readiness of the snapshot store and which storage
// mode the process is currently serving from. demoted is nil in pure local
// deployments.
type HealthHandler struct {
	snapshots *snapshot.Store
	cloudMode bool
	demoted   func() bool
}

func NewHealthHandler(snapshots *snapshot.Store, cloudMode bool, demoted func() bool) *HealthHandler {
	return &HealthHandler{snapshots: snapshots, cloudMode: cloudMode, demoted: demoted}
}

func (h *HealthHandler) mode() string {
	if !h.cloudMode {
		return "local"
	}
	if h.demoted != nil && h.demoted() {
		return "local-fallback"
	}
	return "cloud"
}

// pingHandler just says the service is up.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// healthCheckHandler checks the snapshot database connection.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.snapshots.Ping(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}

	resp := HealthResponse{
		Status:     entry.Status,
		Mode:       h.mode(),
		CheckedAt:  time.Now(),
		Components: map[string]CheckEntry{"snapshot_store": entry},
	}

	statusCode := http.StatusOK
	if entry.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
