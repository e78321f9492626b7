package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// SettingsStore is the key-value settings storage the handler needs.
type SettingsStore interface {
	All() (map[string]string, error)
	Set(key, value string) error
	Delete(key string) error
}

// SettingsHandler reads and writes user settings such as per-exercise targets.
type SettingsHandler struct {
	settings SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(s SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

// Register adds the settings routes to r.
func (h *SettingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/settings", h.list).Methods("GET")
	r.HandleFunc("/api/settings", h.update).Methods("PUT")
	r.HandleFunc("/api/settings/{key}", h.delete).Methods("DELETE")
}

// list handles GET /api/settings.
func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// update handles PUT /api/settings with a JSON object of string values.
// Keys not present in the body are left alone.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	for k, v := range req {
		if k == "" {
			writeError(w, http.StatusBadRequest, "Empty setting key")
			return
		}
		if err := h.settings.Set(k, v); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	h.list(w, r)
}

// delete handles DELETE /api/settings/{key}.
func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Delete(mux.Vars(r)["key"]); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
