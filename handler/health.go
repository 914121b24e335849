package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/storepay/infra/response"
	"github.com/mstgnz/storepay/provider"
)

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db                Pinger
	registry          *provider.Registry
	openSearchEnabled bool
	version           string
	startTime         time.Time
}

// HealthStatus represents overall service health
type HealthStatus struct {
	Status            string          `json:"status"`
	Version           string          `json:"version"`
	Timestamp         time.Time       `json:"timestamp"`
	Uptime            string          `json:"uptime"`
	Database          string          `json:"database"`
	DatabaseError     string          `json:"database_error,omitempty"`
	Providers         []provider.Name `json:"providers"`
	OpenSearchEnabled bool            `json:"opensearch_enabled"`
	Goroutines        int             `json:"goroutines"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, registry *provider.Registry, openSearchEnabled bool, version string) *HealthHandler {
	return &HealthHandler{
		db:                db,
		registry:          registry,
		openSearchEnabled: openSearchEnabled,
		version:           version,
		startTime:         time.Now(),
	}
}

// Health reports 200 when the database answers, 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		Timestamp:         time.Now().UTC(),
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		Database:          "up",
		Providers:         h.registry.Names(),
		OpenSearchEnabled: h.openSearchEnabled,
		Goroutines:        runtime.NumGoroutine(),
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Status = "unhealthy"
		status.Database = "down"
		status.DatabaseError = err.Error()
		response.WriteJSON(w, http.StatusServiceUnavailable, response.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "Service is unhealthy",
			Data:    status,
		})
		return
	}

	response.Success(w, http.StatusOK, "Service is healthy", status)
}
