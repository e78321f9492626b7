package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/hook"
	"github.com/ayusman/formcoach/internal/store"
)

// HookHandler lists installed export hooks and manages their bindings.
type HookHandler struct {
	store *store.Store
	hooks *hook.Manager
}

// NewHookHandler creates a new HookHandler. hooks may be nil when no hook
// directory is configured.
func NewHookHandler(s *store.Store, hooks *hook.Manager) *HookHandler {
	return &HookHandler{store: s, hooks: hooks}
}

// Register adds the hook routes to r.
func (h *HookHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/hooks", h.listHooks).Methods("GET")
	r.HandleFunc("/api/hooks/bindings", h.list).Methods("GET")
	r.HandleFunc("/api/hooks/bindings", h.create).Methods("POST")
	r.HandleFunc("/api/hooks/bindings/{id}", h.get).Methods("GET")
	r.HandleFunc("/api/hooks/bindings/{id}", h.update).Methods("PUT")
	r.HandleFunc("/api/hooks/bindings/{id}", h.delete).Methods("DELETE")
}

type createBindingRequest struct {
	Hook     string          `json:"hook"`
	Exercise string          `json:"exercise"`
	Config   json.RawMessage `json:"config"`
	Enabled  *bool           `json:"enabled"`
}

type updateBindingRequest struct {
	Exercise *string         `json:"exercise"`
	Config   json.RawMessage `json:"config"`
	Enabled  *bool           `json:"enabled"`
}

type listHooksResponse struct {
	Hooks []*hook.Hook `json:"hooks"`
}

type listBindingsResponse struct {
	Bindings []*store.Binding `json:"bindings"`
}

// listHooks handles GET /api/hooks.
func (h *HookHandler) listHooks(w http.ResponseWriter, r *http.Request) {
	hooks := []*hook.Hook{}
	if h.hooks != nil {
		hooks = append(hooks, h.hooks.List()...)
	}
	writeJSON(w, http.StatusOK, listHooksResponse{Hooks: hooks})
}

// list handles GET /api/hooks/bindings.
func (h *HookHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}
	if bindings == nil {
		bindings = []*store.Binding{}
	}
	writeJSON(w, http.StatusOK, listBindingsResponse{Bindings: bindings})
}

// get handles GET /api/hooks/bindings/{id}.
func (h *HookHandler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bindings().GetByID(mux.Vars(r)["id"])
	if err != nil {
		writeBindingError(w, err, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// create handles POST /api/hooks/bindings.
func (h *HookHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Hook == "" {
		writeError(w, http.StatusBadRequest, "Hook is required")
		return
	}
	if h.hooks != nil {
		if _, err := h.hooks.Get(req.Hook); err != nil {
			writeError(w, http.StatusBadRequest, "Hook is not installed")
			return
		}
	}
	if !validExercise(req.Exercise) {
		writeError(w, http.StatusBadRequest, "Invalid exercise")
		return
	}
	if len(req.Config) > 0 && !json.Valid(req.Config) {
		writeError(w, http.StatusBadRequest, "Invalid config")
		return
	}

	b := &store.Binding{
		HookName: req.Hook,
		Exercise: req.Exercise,
		Config:   req.Config,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	if b.Config == nil {
		b.Config = json.RawMessage("{}")
	}

	writeJSON(w, http.StatusCreated, b)
}

// update handles PUT /api/hooks/bindings/{id}. Omitted fields keep their
// stored values.
func (h *HookHandler) update(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Bindings().GetByID(mux.Vars(r)["id"])
	if err != nil {
		writeBindingError(w, err, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Exercise != nil {
		if !validExercise(*req.Exercise) {
			writeError(w, http.StatusBadRequest, "Invalid exercise")
			return
		}
		b.Exercise = *req.Exercise
	}
	if len(req.Config) > 0 {
		if !json.Valid(req.Config) {
			writeError(w, http.StatusBadRequest, "Invalid config")
			return
		}
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeBindingError(w, err, "Failed to update binding")
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// delete handles DELETE /api/hooks/bindings/{id}.
func (h *HookHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Bindings().Delete(mux.Vars(r)["id"]); err != nil {
		writeBindingError(w, err, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeBindingError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Binding not found")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}

// validExercise accepts a catalog id or "" for every exercise.
func validExercise(id string) bool {
	return id == "" || exercise.Kind(id).Valid()
}
