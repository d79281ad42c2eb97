package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lorabridge/bridge-core/internal/settings"
)

// handleGetSettings returns the live settings with the MQTT password
// blanked. The hash-less secret and encryption key do go out: the operator
// set them and needs to read them back; the API sits behind Basic auth.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.gateway.Settings(r.Context())
	if err != nil {
		writeInternalError(w, "failed to read settings")
		return
	}

	set.MQTTPassword = ""
	writeJSON(w, http.StatusOK, set)
}

// handleUpdateSettings validates and applies a full settings document.
//
// An empty mqtt_password means "keep the current one", matching how the
// GET handler blanks it; a round-tripped document never wipes credentials.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, err := s.gateway.Settings(ctx)
	if err != nil {
		writeInternalError(w, "failed to read settings")
		return
	}

	next := current
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if next.MQTTPassword == "" {
		next.MQTTPassword = current.MQTTPassword
	}

	if err := s.gateway.UpdateSettings(ctx, next); err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to update settings")
		return
	}

	next.MQTTPassword = ""
	writeJSON(w, http.StatusOK, next)
}

// handleResetSettings reverts every setting to its config-file default,
// dropping the persisted overrides. Returns the settings now in effect.
func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.gateway.ResetSettings(r.Context())
	if err != nil {
		writeInternalError(w, "failed to reset settings")
		return
	}

	set.MQTTPassword = ""
	writeJSON(w, http.StatusOK, set)
}
