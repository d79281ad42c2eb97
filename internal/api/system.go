package api

import "net/http"

// handleStatus returns the gateway's traffic and device counters, plus
// the database schema state when a database was wired in.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.gateway.Status(r.Context())
	if err != nil {
		writeInternalError(w, "failed to read gateway status")
		return
	}

	body := map[string]any{
		"version": s.version,
		"gateway": status,
	}

	if s.db != nil {
		applied, pending, schemaErr := s.db.GetMigrationStatus(r.Context())
		if schemaErr != nil {
			// Degraded status beats a failed endpoint.
			s.logger.Error("reading migration status failed", "error", schemaErr)
		} else {
			schema := map[string]any{
				"applied": len(applied),
				"pending": len(pending),
			}
			if len(applied) > 0 {
				schema["version"] = applied[len(applied)-1].Version
			}
			body["schema"] = schema
		}
	}

	writeJSON(w, http.StatusOK, body)
}
