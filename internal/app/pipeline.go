package app

import (
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/workout"
)

// Event types handed to the Publisher. They are the message types clients
// see on the event stream.
const (
	EventRep        = "rep"
	EventPhase      = "phase"
	EventFeedback   = "feedback"
	EventAngles     = "angles"
	EventMotivation = "motivation"
	EventState      = "state"
	EventSession    = "session"
)

type repEvent struct {
	Count  int `json:"count"`
	Target int `json:"target"`
}

// callbacks routes detector events to the publisher and subscribers:
//  1. every rep is published with the target, and may earn a motivational message
//  2. reaching the target closes Done
//  3. phase, feedback and angle updates are published as they come
func (a *App) callbacks() workout.Callbacks {
	return workout.Callbacks{
		OnRepComplete: func(count int) {
			a.publish(EventRep, repEvent{Count: count, Target: a.target})
			if msg := a.motivator.Message(a.config.Kind, count, a.target); msg != "" {
				a.publish(EventMotivation, msg)
			}
			a.notify()
			if count >= a.target {
				a.doneOnce.Do(func() { close(a.done) })
			}
		},
		OnPositionChange: func(phase exercise.Phase) {
			a.publish(EventPhase, phase)
			a.notify()
		},
		OnFormFeedback: func(fb exercise.Feedback) {
			a.publish(EventFeedback, fb)
		},
		OnAngleUpdate: func(angles []exercise.JointAngle) {
			a.publish(EventAngles, angles)
		},
	}
}

func (a *App) stateChanged() {
	a.mu.RLock()
	det := a.det
	a.mu.RUnlock()
	if det == nil {
		return
	}
	a.publish(EventState, det.State())
	a.notify()
}

func (a *App) publish(eventType string, data any) {
	if a.config.Events != nil {
		a.config.Events.Publish(eventType, data)
	}
}

// notify sends the current snapshot to subscribers. Events raised while the
// detector is still being opened are not forwarded.
func (a *App) notify() {
	a.mu.RLock()
	det := a.det
	listeners := a.listeners
	a.mu.RUnlock()

	if det == nil || len(listeners) == 0 {
		return
	}
	snap := det.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
