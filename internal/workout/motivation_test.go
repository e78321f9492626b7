package workout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/workout"
)

func TestMotivator_Message(t *testing.T) {
	clock := newFakeClock()
	m := workout.NewMotivator(clock.Now)

	assert.Equal(t, "One more! You've got this!", m.Message(exercise.PushUps, 9, 10))
	assert.Empty(t, m.Message(exercise.PushUps, 9, 10), "cooldown suppresses the next message")

	clock.Advance(workout.MotivationCooldown)
	assert.Equal(t, "10 push-ups! Your upper body is getting stronger!", m.Message(exercise.PushUps, 10, 20),
		"milestones win over progress messages")

	clock.Advance(workout.MotivationCooldown)
	assert.Empty(t, m.Message(exercise.Plank, 1, 30))
	assert.Equal(t, "Five reps down! You're warmed up!", m.Message(exercise.Squats, 5, 40),
		"an empty result does not start the cooldown")

	clock.Advance(workout.MotivationCooldown)
	assert.Empty(t, m.Message(exercise.JumpingJacks, 3, 0))
}

func TestMotivator_Progress(t *testing.T) {
	tests := []struct {
		count, target int
		want          string
	}{
		{8, 10, "Two left! Keep going!"},
		{17, 20, "Three more! You're almost there!"},
		{25, 30, "Five more! Push through!"},
		{37, 40, "Three more! You're almost there!"},
		{46, 50, "Final stretch! Don't give up!"},
		{31, 40, "Three quarters done! Keep it up!"},
		{21, 40, "Halfway there! You're doing great!"},
		{11, 40, "Quarter done! Find your rhythm!"},
		{2, 40, ""},
	}

	for _, tt := range tests {
		clock := newFakeClock()
		m := workout.NewMotivator(clock.Now)
		assert.Equal(t, tt.want, m.Message(exercise.Plank, tt.count, tt.target), "count %d of %d", tt.count, tt.target)
	}
}
