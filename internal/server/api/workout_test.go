package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/workout"
)

type fakeController struct {
	snap    workout.Snapshot
	err     error
	actions []string
}

func (f *fakeController) Snapshot() (workout.Snapshot, error) { return f.snap, f.err }

func (f *fakeController) Pause() error  { return f.do("pause") }
func (f *fakeController) Resume() error { return f.do("resume") }
func (f *fakeController) Reset() error  { return f.do("reset") }
func (f *fakeController) AddRep() error { return f.do("rep") }

func (f *fakeController) do(action string) error {
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, action)
	if action == "rep" {
		f.snap.Count++
	}
	return nil
}

func TestWorkoutHandler_Exercises(t *testing.T) {
	rec := serve(NewWorkoutHandler(nil), http.MethodGet, "/api/exercises", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listExercisesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Exercises) != len(exercise.Kinds) {
		t.Fatalf("expected %d exercises, got %d", len(exercise.Kinds), len(response.Exercises))
	}
	if response.Exercises[0].Kind != exercise.Kinds[0] {
		t.Errorf("expected catalog order, got %s first", response.Exercises[0].Kind)
	}
}

func TestWorkoutHandler_Snapshot(t *testing.T) {
	ctrl := &fakeController{snap: workout.Snapshot{
		Kind:  exercise.Squats,
		State: workout.StateRunning,
		Phase: exercise.PhaseDown,
		Count: 4,
	}}

	rec := serve(NewWorkoutHandler(ctrl), http.MethodGet, "/api/workout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var snap workout.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Kind != exercise.Squats || snap.Count != 4 || snap.Phase != exercise.PhaseDown {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestWorkoutHandler_NoWorkout(t *testing.T) {
	for _, h := range []*WorkoutHandler{
		NewWorkoutHandler(nil),
		NewWorkoutHandler(&fakeController{err: workout.ErrNoWorkout}),
	} {
		rec := serve(h, http.MethodGet, "/api/workout", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}

		rec = serve(h, http.MethodPost, "/api/workout/pause", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	}
}

func TestWorkoutHandler_Actions(t *testing.T) {
	ctrl := &fakeController{snap: workout.Snapshot{Kind: exercise.PushUps, Manual: true}}
	handler := NewWorkoutHandler(ctrl)

	for _, action := range []string{"pause", "resume", "reset", "rep"} {
		rec := serve(handler, http.MethodPost, "/api/workout/"+action, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d: %s", action, http.StatusOK, rec.Code, rec.Body.String())
		}
	}

	want := []string{"pause", "resume", "reset", "rep"}
	if len(ctrl.actions) != len(want) {
		t.Fatalf("expected actions %v, got %v", want, ctrl.actions)
	}
	for i := range want {
		if ctrl.actions[i] != want[i] {
			t.Errorf("expected actions %v, got %v", want, ctrl.actions)
		}
	}

	rec := serve(handler, http.MethodPost, "/api/workout/rep", nil)
	var snap workout.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Count != 2 {
		t.Errorf("expected the snapshot after the rep, got count %d", snap.Count)
	}
}

func TestWorkoutHandler_UnknownAction(t *testing.T) {
	handler := NewWorkoutHandler(&fakeController{})

	rec := serve(handler, http.MethodPost, "/api/workout/explode", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(handler, http.MethodGet, "/api/workout/pause", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestWorkoutHandler_ControlErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"manual only", workout.ErrManualOnly, http.StatusConflict},
		{"not running", workout.ErrNotRunning, http.StatusConflict},
		{"closed", workout.ErrClosed, http.StatusConflict},
		{"unexpected", errors.New("camera on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewWorkoutHandler(&fakeController{err: tt.err}), http.MethodPost, "/api/workout/rep", nil)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
