package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthStatus is the body of /health-check/status.
type HealthStatus struct {
	Status      string `json:"status"`
	PushEnabled bool   `json:"pushEnabled"`
	Realtime    int    `json:"realtimeConnections"`
}

// HealthHandler serves /health-check/{action}: "ping" for liveness and
// "status" for what the instance can deliver.
type HealthHandler struct {
	pushEnabled bool
	connections func() int
}

// NewHealthHandler takes a live connection counter; nil reports zero.
func NewHealthHandler(pushEnabled bool, connections func() int) *HealthHandler {
	if connections == nil {
		connections = func() int { return 0 }
	}
	return &HealthHandler{pushEnabled: pushEnabled, connections: connections}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "status":
		writeJSON(w, http.StatusOK, HealthStatus{Status: "ok", PushEnabled: h.pushEnabled, Realtime: h.connections()})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
