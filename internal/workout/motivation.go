package workout

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
)

// MotivationCooldown is the minimum gap between two motivational messages.
const MotivationCooldown = 5 * time.Second

// Motivator produces occasional encouragement as a workout progresses.
type Motivator struct {
	now      func() time.Time
	cooldown time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewMotivator creates a Motivator with the default cooldown.
func NewMotivator(now func() time.Time) *Motivator {
	if now == nil {
		now = time.Now
	}
	return &Motivator{now: now, cooldown: MotivationCooldown}
}

// milestones are per-exercise rep multiples that get their own message.
var milestones = map[exercise.Kind]struct {
	every  int
	format string
}{
	exercise.PushUps:      {10, "%d push-ups! Your upper body is getting stronger!"},
	exercise.Squats:       {15, "%d squats! Your legs are on fire!"},
	exercise.JumpingJacks: {20, "%d jumping jacks! Your heart is pumping!"},
}

// Message returns an encouragement for count out of target, or "" when
// nothing applies or the cooldown has not passed.
func (m *Motivator) Message(kind exercise.Kind, count, target int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.last.IsZero() && now.Sub(m.last) < m.cooldown {
		return ""
	}

	msg := progressMessage(count, target)
	if ms, ok := milestones[kind]; ok && count > 0 && count%ms.every == 0 {
		msg = fmt.Sprintf(ms.format, count)
	}

	if msg != "" {
		m.last = now
	}
	return msg
}

func progressMessage(count, target int) string {
	if target <= 0 {
		return ""
	}
	remaining := target - count
	progress := float64(count) / float64(target)

	switch {
	case remaining == 1:
		return "One more! You've got this!"
	case remaining == 2:
		return "Two left! Keep going!"
	case remaining == 3:
		return "Three more! You're almost there!"
	case remaining == 5:
		return "Five more! Push through!"
	case progress >= 0.9:
		return "Final stretch! Don't give up!"
	case progress >= 0.75:
		return "Three quarters done! Keep it up!"
	case progress >= 0.5:
		return "Halfway there! You're doing great!"
	case progress >= 0.25:
		return "Quarter done! Find your rhythm!"
	case count == 5:
		return "Five reps down! You're warmed up!"
	case count == 10:
		return "Ten reps! You're on fire!"
	}
	return ""
}
