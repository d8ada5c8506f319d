package api

import (
	"errors"
	"net/http"

	"github.com/ssouza/wadispatch/internal/store"
)

// HealthzHandler handles GET /healthz. It reports liveness only.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz. It probes the message store with a
// lookup of a reserved id; ErrNotFound proves the backend is reachable.
func ReadyzHandler(messages store.MessageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := messages.Get(r.Context(), "readyz-probe")
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusServiceUnavailable, "message store unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
