package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/workout"
)

// Controller drives the active workout.
type Controller interface {
	Snapshot() (workout.Snapshot, error)
	Pause() error
	Resume() error
	Reset() error
	AddRep() error
}

// WorkoutHandler exposes the exercise catalog and the active workout.
type WorkoutHandler struct {
	ctrl Controller
}

// NewWorkoutHandler creates a new WorkoutHandler. ctrl may be nil, in which
// case every workout request answers 404.
func NewWorkoutHandler(ctrl Controller) *WorkoutHandler {
	return &WorkoutHandler{ctrl: ctrl}
}

// Register adds the catalog and workout routes to r.
func (h *WorkoutHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/exercises", h.exercises).Methods("GET")
	r.HandleFunc("/api/workout", h.snapshot).Methods("GET")
	r.HandleFunc("/api/workout/{action:pause|resume|reset|rep}", h.action).Methods("POST")
}

type listExercisesResponse struct {
	Exercises []exercise.Info `json:"exercises"`
}

// exercises handles GET /api/exercises.
func (h *WorkoutHandler) exercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listExercisesResponse{Exercises: exercise.Catalog()})
}

// snapshot handles GET /api/workout.
func (h *WorkoutHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		writeError(w, http.StatusNotFound, workout.ErrNoWorkout.Error())
		return
	}

	snap, err := h.ctrl.Snapshot()
	if err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// action handles POST /api/workout/{pause|resume|reset|rep} and answers
// with the resulting snapshot.
func (h *WorkoutHandler) action(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		writeError(w, http.StatusNotFound, workout.ErrNoWorkout.Error())
		return
	}

	var err error
	switch mux.Vars(r)["action"] {
	case "pause":
		err = h.ctrl.Pause()
	case "resume":
		err = h.ctrl.Resume()
	case "reset":
		err = h.ctrl.Reset()
	case "rep":
		err = h.ctrl.AddRep()
	}
	if err != nil {
		writeControlError(w, err)
		return
	}

	h.snapshot(w, r)
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workout.ErrNoWorkout):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workout.ErrManualOnly),
		errors.Is(err, workout.ErrNotRunning),
		errors.Is(err, workout.ErrNotInitialized),
		errors.Is(err, workout.ErrClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Workout control failed")
	}
}
