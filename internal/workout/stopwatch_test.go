package workout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/formcoach/internal/workout"
)

func TestStopwatch(t *testing.T) {
	clock := newFakeClock()
	sw := workout.NewStopwatch(clock.Now)

	clock.Advance(time.Minute)
	assert.Zero(t, sw.Elapsed(), "stopped stopwatch must not accumulate")

	sw.Start()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 5*time.Second, sw.Elapsed())
	assert.True(t, sw.Running())

	sw.Pause()
	clock.Advance(3 * time.Second)
	assert.Equal(t, 5*time.Second, sw.Elapsed())
	assert.False(t, sw.Running())

	sw.Start()
	sw.Start()
	clock.Advance(2 * time.Second)
	assert.Equal(t, 7*time.Second, sw.Elapsed())

	sw.Reset()
	assert.Zero(t, sw.Elapsed())
	clock.Advance(time.Second)
	assert.Equal(t, time.Second, sw.Elapsed(), "reset keeps a running stopwatch running")

	sw.Pause()
	sw.Pause()
	sw.Reset()
	clock.Advance(time.Second)
	assert.Zero(t, sw.Elapsed())
}
