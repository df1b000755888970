package httpapi

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// handleGetSession returns one recorded session with its committed tokens
// and transcripts.
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	if !r.store.Enabled() {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	id := req.PathValue("id")
	if id == "" {
		http.Error(w, `{"error": "session id is required"}`, http.StatusBadRequest)
		return
	}

	detail, err := r.store.GetSessionDetail(req.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
			return
		}
		captureError(req, err, "sessions: failed to load session detail")
		r.logger.Printf("sessions: failed to load %s: %v", id, err)
		http.Error(w, `{"error": "failed to load session"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
