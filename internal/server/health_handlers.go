package server

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Database  string         `json:"database"`
	Storage   string         `json:"storage"`
	Inbox     string         `json:"inbox,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (s *APIServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "ok",
		Storage:   "ok",
		Details: map[string]any{
			"database_driver": s.config.Database.Driver,
			"storage_driver":  s.media.Name(),
		},
	}

	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	}

	if err := s.media.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Storage = "error"
		health.Details["storage_error"] = err.Error()
	}

	if url := s.ngrokService.PublicURL(); url != "" {
		health.Details["public_url"] = url
	}

	if s.inbox != nil {
		health.Inbox = "watching"
		if s.watcher == nil {
			health.Inbox = "idle"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	s.respondJSON(w, statusCode, health)
}
