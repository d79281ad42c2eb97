package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorabridge/bridge-core/internal/device"
)

// deviceResponse is the JSON shape of one device.
type deviceResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Capabilities []string       `json:"capabilities"`
	ContactType  string         `json:"contact_type,omitempty"`
	MotionType   string         `json:"motion_type,omitempty"`
	Values       map[string]any `json:"values"`
	RSSI         int            `json:"rssi"`
	LastSeen     time.Time      `json:"last_seen"`
	Stale        bool           `json:"stale"`
}

// toDeviceResponse projects a device for the API. Only flagged
// capabilities surface; cached values for unflagged fields stay hidden,
// same as everywhere else in the bridge.
func toDeviceResponse(d device.Device, now time.Time) deviceResponse {
	resp := deviceResponse{
		ID:       d.ID,
		Name:     d.Name,
		Values:   make(map[string]any),
		RSSI:     d.RSSI,
		LastSeen: d.LastSeen,
		Stale:    d.IsStale(now),
	}

	add := func(capability string, value any) {
		resp.Capabilities = append(resp.Capabilities, capability)
		resp.Values[capability] = value
	}

	if d.HasTemperature {
		add("temperature", d.Temperature)
	}
	if d.HasHumidity {
		add("humidity", d.Humidity)
	}
	if d.HasBattery {
		add("battery", d.Battery)
	}
	if d.HasLight {
		add("light", d.Light)
	}
	if d.HasMotion {
		add("motion", d.Motion)
		resp.MotionType = d.MotionSubtype.String()
	}
	if d.HasContact {
		add("contact", d.Contact)
		resp.ContactType = d.ContactSubtype.String()
	}

	return resp
}

// handleListDevices returns the full device table.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.gateway.Devices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	now := time.Now()
	out := make([]deviceResponse, len(devices))
	for i, d := range devices {
		out[i] = toDeviceResponse(d, now)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	devices, err := s.gateway.Devices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}

	for _, d := range devices {
		if d.ID == id {
			writeJSON(w, http.StatusOK, toDeviceResponse(d, time.Now()))
			return
		}
	}
	writeNotFound(w, "device not found")
}

// renameRequest is the PATCH /devices/{id} body.
type renameRequest struct {
	Name string `json:"name"`
}

// handleRenameDevice changes a device's display name.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.gateway.RenameDevice(r.Context(), id, req.Name); err != nil {
		writeDeviceError(w, err, "failed to rename device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "name": req.Name})
}

// retypeRequest is the PUT /devices/{id}/type body.
type retypeRequest struct {
	// Capability is "contact" or "motion".
	Capability string `json:"capability"`

	// Type is the subtype name, e.g. "leak" or "occupancy".
	Type string `json:"type"`
}

// handleRetypeDevice changes the projected subtype of a contact or motion
// capability.
func (s *Server) handleRetypeDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req retypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var err error
	switch req.Capability {
	case "contact":
		var t device.ContactType
		if t, err = device.ParseContactType(req.Type); err == nil {
			err = s.gateway.SetContactType(r.Context(), id, t)
		}
	case "motion":
		var t device.MotionType
		if t, err = device.ParseMotionType(req.Type); err == nil {
			err = s.gateway.SetMotionType(r.Context(), id, t)
		}
	default:
		writeBadRequest(w, "capability must be contact or motion")
		return
	}

	if err != nil {
		writeDeviceError(w, err, "failed to change device type")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "capability": req.Capability, "type": req.Type})
}

// handleRemoveDevice unpairs a device.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.gateway.RemoveDevice(r.Context(), id); err != nil {
		writeDeviceError(w, err, "failed to remove device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "removed": true})
}

// writeDeviceError maps registry errors onto HTTP responses.
func writeDeviceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidType),
		errors.Is(err, device.ErrCapabilityMissing):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, fallback)
	}
}
