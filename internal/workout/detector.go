// Package workout runs exercise detection for one workout: it owns the frame
// loop, the per-exercise classifier, timing and the session summary.
package workout

import (
	"errors"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
)

var (
	// ErrNotInitialized is returned when a detector is started before Initialize.
	ErrNotInitialized = errors.New("detector not initialized")
	// ErrClosed is returned by any operation after Cleanup.
	ErrClosed = errors.New("detector closed")
	// ErrNotRunning is returned when a frame is processed while the detector is stopped.
	ErrNotRunning = errors.New("detector not running")
	// ErrModelUnavailable wraps a failure to acquire the pose model.
	ErrModelUnavailable = errors.New("pose model unavailable")
	// ErrFrameDiscarded is returned when a frame's inference finished after a Reset.
	ErrFrameDiscarded = errors.New("frame discarded after reset")
	// ErrNoWorkout is returned by workout controls when no workout is active.
	ErrNoWorkout = errors.New("no active workout")
	// ErrManualOnly is returned when adding a rep by hand while the pose model counts.
	ErrManualOnly = errors.New("reps can only be added in manual mode")
)

// ManualModeMessage is the feedback given when a workout falls back to manual counting.
const ManualModeMessage = "AI detection unavailable. Use manual controls to count reps."

// State is the lifecycle stage of a detector.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateRunning       State = "running"
	StatePaused        State = "paused"
	StateClosed        State = "closed"
)

// Callbacks receive detector events. They are invoked from the detector's
// loop goroutine, never while the detector holds its lock, so they may call
// back into the detector. Nil callbacks are skipped.
type Callbacks struct {
	OnRepComplete    func(count int)
	OnPositionChange func(phase exercise.Phase)
	OnFormFeedback   func(fb exercise.Feedback)
	OnAngleUpdate    func(angles []exercise.JointAngle)
}

func (c Callbacks) repComplete(count int) {
	if c.OnRepComplete != nil {
		c.OnRepComplete(count)
	}
}

func (c Callbacks) positionChange(p exercise.Phase) {
	if c.OnPositionChange != nil {
		c.OnPositionChange(p)
	}
}

func (c Callbacks) formFeedback(fb exercise.Feedback) {
	if c.OnFormFeedback != nil {
		c.OnFormFeedback(fb)
	}
}

func (c Callbacks) angleUpdate(a []exercise.JointAngle) {
	if c.OnAngleUpdate != nil && len(a) > 0 {
		c.OnAngleUpdate(a)
	}
}

// Detector is the lifecycle shared by the pose detector and the manual fallback.
type Detector interface {
	Kind() exercise.Kind
	// Start begins or resumes counting. No-op if already running.
	Start() error
	// Stop pauses counting without clearing it.
	Stop()
	// Reset zeroes count and phase without stopping.
	Reset()
	// Cleanup stops the detector and releases its resources. Idempotent.
	Cleanup() error
	Count() int
	Phase() exercise.Phase
	State() State
	// Manual reports whether reps are counted by hand.
	Manual() bool
	Snapshot() Snapshot
	Summary() Summary
}

// Snapshot is the externally visible detector state at one moment.
type Snapshot struct {
	Kind           exercise.Kind     `json:"exercise"`
	State          State             `json:"state"`
	Phase          exercise.Phase    `json:"phase"`
	Count          int               `json:"count"`
	Elapsed        float64           `json:"elapsed_seconds"`
	Manual         bool              `json:"manual"`
	Feedback       exercise.Feedback `json:"feedback"`
	LastTransition time.Time         `json:"last_transition,omitempty"`
}
