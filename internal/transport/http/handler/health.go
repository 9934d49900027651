package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PendingCounter reports how many grace periods are still running.
type PendingCounter interface {
	Len() int
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	sweepers map[string]PendingCounter
}

// NewHealthHandler builds a HealthHandler. sweepers are reported by name on
// the "sweepers" action.
func NewHealthHandler(sweepers map[string]PendingCounter) *HealthHandler {
	return &HealthHandler{sweepers: sweepers}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "sweepers":
		pending := make(map[string]int, len(h.sweepers))
		for name, s := range h.sweepers {
			pending[name] = s.Len()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
