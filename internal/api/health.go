package api

import (
	"net/http"
	"time"

	"github.com/CaputoDavide93/new-starters-meetup/internal/api/respond"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a health handler probing the given store.
func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// CheckHealth handles GET /api/health.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "DOWN",
			"message":   err.Error(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "UP",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
