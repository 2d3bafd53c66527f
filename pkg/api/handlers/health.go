// Package handlers contains the HTTP handlers for the operational API.
package handlers

import (
	"context"
	"net/http"
)

// Pinger reports backing-store reachability. Satisfied by the Postgres
// store; nil means the service runs without a database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a health handler. store may be nil.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /health. It only confirms the process is serving;
// no dependency checks, so a broken database never gets the pod killed.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "shiftsnap",
	}))
}

// Readiness handles GET /health/ready. Ready means the database answers a
// ping, or no database is configured at all.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
			"database": "not configured",
		}))
		return
	}

	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database unreachable: "+err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"database": "ok",
	}))
}
