package counting

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// SnapshotHandler serves the live tracker state of a running session at
// GET .../{id}. It reads from this worker's memory only.
func (m *Manager) SnapshotHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
			return
		}
		snap, ok := m.Snapshot(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not active"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}
