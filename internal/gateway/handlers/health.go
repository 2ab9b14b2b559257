package handlers

import (
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model,omitempty"`
	Uptime  int64  `json:"uptime"`
}

// HealthHandler reports liveness. Uptime counts from handler creation.
func HealthHandler(version, model string) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			Model:   model,
			Uptime:  int64(time.Since(started).Seconds()),
		})
	}
}
