package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lorabridge/bridge-core/internal/activity"
)

// handleListActivity returns the activity log newest-first. Tombstoned
// entries are included so client-side indices stay stable across clears.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.gateway.Activity(r.Context())
	if err != nil {
		writeInternalError(w, "failed to read activity log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleClearActivity tombstones a single entry by its newest-first index.
func (s *Server) handleClearActivity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "index must be an integer")
		return
	}

	if err := s.gateway.ClearActivityEntry(r.Context(), index); err != nil {
		if errors.Is(err, activity.ErrIndexOutOfRange) {
			writeNotFound(w, "no activity entry at that index")
			return
		}
		writeInternalError(w, "failed to clear activity entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"index": index, "cleared": true})
}
