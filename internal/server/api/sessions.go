package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/store"
)

// DefaultSessionLimit is the page size of GET /api/sessions without ?limit.
const DefaultSessionLimit = 50

// SessionHandler serves workout history and stats.
type SessionHandler struct {
	store *store.Store
	now   func() time.Time
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s, now: time.Now}
}

// Register adds the session routes to r.
func (h *SessionHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", h.list).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", h.get).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", h.delete).Methods("DELETE")
	r.HandleFunc("/api/stats", h.stats).Methods("GET")
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// list handles GET /api/sessions. With ?from and ?to (RFC 3339 or
// YYYY-MM-DD) it returns the sessions started in [from, to), otherwise the
// newest ?limit sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		sessions []*store.Session
		err      error
	)

	if q.Get("from") != "" || q.Get("to") != "" {
		from, ferr := parseTime(q.Get("from"), time.Time{})
		to, terr := parseTime(q.Get("to"), h.now())
		if ferr != nil || terr != nil {
			writeError(w, http.StatusBadRequest, "Invalid time range")
			return
		}
		if !to.After(from) {
			writeError(w, http.StatusBadRequest, "'to' must be after 'from'")
			return
		}
		sessions, err = h.store.Sessions().ListBetween(from, to)
	} else {
		limit := DefaultSessionLimit
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				writeError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
		}
		sessions, err = h.store.Sessions().List(limit)
	}

	if err != nil {
		log.WithError(err).Error("list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Sessions().GetByID(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Sessions().Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// stats handles GET /api/stats.
func (h *SessionHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(h.now())
	if err != nil {
		log.WithError(err).Error("compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func parseTime(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}
