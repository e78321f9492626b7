package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/workout"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name   string
		snap   workout.Snapshot
		target int
		want   string
	}{
		{
			name:   "running reps",
			snap:   workout.Snapshot{Kind: exercise.Squats, State: workout.StateRunning, Phase: exercise.PhaseDown, Count: 4},
			target: 15,
			want:   "Squats 4/15 - DOWN",
		},
		{
			name:   "held seconds in manual mode",
			snap:   workout.Snapshot{Kind: exercise.Plank, State: workout.StateRunning, Phase: exercise.PhaseReady, Count: 12, Manual: true},
			target: 30,
			want:   "Plank 12s/30s - READY (manual)",
		},
		{
			name:   "paused",
			snap:   workout.Snapshot{Kind: exercise.PushUps, State: workout.StatePaused, Phase: exercise.PhaseUp, Count: 7},
			target: 10,
			want:   "Push-ups 7/10 - paused",
		},
		{
			name:   "finished",
			snap:   workout.Snapshot{Kind: exercise.JumpingJacks, State: workout.StateClosed, Count: 20},
			target: 20,
			want:   "Jumping Jacks 20/20 - finished",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLine(tt.snap, tt.target))
		})
	}
}

func TestTray_UpdateBeforeReady(t *testing.T) {
	tr := New(10)

	tr.Update(workout.Snapshot{Kind: exercise.PushUps, State: workout.StatePaused, Count: 3})
	assert.True(t, tr.IsPaused())
	assert.Equal(t, "Push-ups 3/10 - paused", tr.statusOrDefault())

	tr.Update(workout.Snapshot{Kind: exercise.PushUps, State: workout.StateRunning, Phase: exercise.PhaseUp, Count: 4})
	assert.False(t, tr.IsPaused())
}

func TestTray_PauseCallback(t *testing.T) {
	tr := New(10)

	var got []bool
	tr.OnPause(func(paused bool) { got = append(got, paused) })

	tr.handlePause()
	tr.handlePause()

	assert.Equal(t, []bool{true, false}, got)
}
