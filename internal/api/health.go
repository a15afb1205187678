package api

import "net/http"

// HealthResponse is the body returned by GET /api/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
