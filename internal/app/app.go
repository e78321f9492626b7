// Package app runs one workout end to end: it brings up the detector (or
// the manual fallback), fans detector events out to subscribers, stops when
// the target is reached, and persists and exports the finished session.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/capture"
	"github.com/ayusman/formcoach/internal/estimator"
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/hook"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/store"
	"github.com/ayusman/formcoach/internal/workout"
)

// TargetSettingPrefix prefixes the settings key holding a user's preferred
// target, e.g. "target.squats".
const TargetSettingPrefix = "target."

// Publisher receives workout events, e.g. the websocket hub.
type Publisher interface {
	Publish(eventType string, data any)
}

// Config holds configuration options for the application.
type Config struct {
	Kind exercise.Kind
	// Target overrides the stored or catalog default target when positive.
	Target int

	Source  capture.Source
	Model   *estimator.Model
	Surface capture.Surface
	Gate    *capture.MotionGate

	MinScore     float64
	TargetFPS    int
	TickInterval time.Duration

	Store       *store.Store
	Hooks       *hook.Manager
	HookTimeout time.Duration
	Events      Publisher
	Metrics     *metrics.Manager
	Now         func() time.Time
}

// App is the orchestrator of a single workout.
type App struct {
	config     Config
	target     int
	motivator  *workout.Motivator
	dispatcher *hook.Dispatcher

	done     chan struct{}
	doneOnce sync.Once

	mu        sync.RWMutex
	det       workout.Detector
	finished  bool
	session   *store.Session
	listeners []func(workout.Snapshot)
}

// New creates a new App for cfg.Kind. The target is cfg.Target, else the
// stored per-exercise setting, else the catalog default.
func New(cfg Config) (*App, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", exercise.ErrUnsupportedKind, cfg.Kind)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = hook.DefaultTimeout
	}

	target := cfg.Target
	if target <= 0 {
		target = cfg.Kind.Info().DefaultTarget
		if cfg.Store != nil {
			target = cfg.Store.Settings().GetInt(TargetSettingPrefix+string(cfg.Kind), target)
		}
	}

	a := &App{
		config:    cfg,
		target:    target,
		motivator: workout.NewMotivator(cfg.Now),
		done:      make(chan struct{}),
	}
	if cfg.Hooks != nil {
		a.dispatcher = hook.NewDispatcher(cfg.Hooks, hook.NewExecutor(cfg.HookTimeout), cfg.Metrics)
	}
	return a, nil
}

// Target returns the number of reps (seconds for held exercises) to reach.
func (a *App) Target() int {
	return a.target
}

// Subscribe registers fn to receive a snapshot after every rep, phase or
// state change. A subscriber added once the workout is running gets the
// current snapshot right away.
func (a *App) Subscribe(fn func(workout.Snapshot)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	det := a.det
	a.mu.Unlock()

	if det != nil {
		fn(det.Snapshot())
	}
}

// Start opens the detector, falling back to manual counting, and starts it.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.det != nil || a.finished {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	det, err := workout.Open(ctx, workout.Config{
		Kind:         a.config.Kind,
		Target:       a.target,
		Source:       a.config.Source,
		Model:        a.config.Model,
		Surface:      a.config.Surface,
		Gate:         a.config.Gate,
		Callbacks:    a.callbacks(),
		MinScore:     a.config.MinScore,
		TargetFPS:    a.config.TargetFPS,
		TickInterval: a.config.TickInterval,
		Metrics:      a.config.Metrics,
		Now:          a.config.Now,
	})
	if err != nil {
		return fmt.Errorf("open detector: %w", err)
	}

	a.mu.Lock()
	a.det = det
	a.mu.Unlock()

	if err := det.Start(); err != nil {
		return fmt.Errorf("start detector: %w", err)
	}

	log.WithFields(log.Fields{
		"exercise": a.config.Kind,
		"target":   a.target,
		"manual":   det.Manual(),
	}).Info("workout started")
	a.stateChanged()
	return nil
}

// Done is closed once the target has been reached.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Run starts the workout and blocks until the target is reached or ctx is
// done, then finishes it. The session is nil when nothing was counted.
func (a *App) Run(ctx context.Context) (*store.Session, error) {
	if err := a.Start(ctx); err != nil {
		return nil, err
	}

	select {
	case <-a.done:
		log.WithField("exercise", a.config.Kind).Info("target reached")
	case <-ctx.Done():
		log.WithField("exercise", a.config.Kind).Info("workout interrupted")
	}

	return a.Finish(context.WithoutCancel(ctx))
}

// Finish stops and cleans up the detector, then saves the session and runs
// the export hooks. Sessions with nothing counted are not saved. Calling
// Finish again returns the first result.
func (a *App) Finish(ctx context.Context) (*store.Session, error) {
	a.mu.Lock()
	if a.finished {
		s := a.session
		a.mu.Unlock()
		return s, nil
	}
	a.finished = true
	det := a.det
	a.mu.Unlock()

	if det == nil {
		return nil, nil
	}

	det.Stop()
	summary := det.Summary()
	if err := det.Cleanup(); err != nil {
		log.WithError(err).Warn("detector cleanup")
	}
	a.stateChanged()

	logger := log.WithFields(log.Fields{
		"exercise": summary.Kind,
		"count":    summary.Count,
		"target":   summary.Target,
		"accuracy": summary.Accuracy,
	})
	if summary.Count == 0 {
		logger.Info("nothing counted, session not saved")
		return nil, nil
	}

	session := toSession(summary)
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		if a.config.Metrics != nil {
			a.config.Metrics.CounterSessionsSaved.Inc()
		}
		logger.WithField("session", session.ID).Info("session saved")
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	a.publish(EventSession, session)
	a.runHooks(ctx, session)
	return session, nil
}

func (a *App) runHooks(ctx context.Context, session *store.Session) {
	if a.dispatcher == nil || a.config.Store == nil {
		return
	}

	bindings, err := a.config.Store.Bindings().ForExercise(session.Exercise)
	if err != nil {
		log.WithError(err).Warn("load hook bindings")
		return
	}

	hb := make([]hook.Binding, 0, len(bindings))
	for _, b := range bindings {
		hb = append(hb, hook.Binding{Hook: b.HookName, Config: b.Config})
	}
	a.dispatcher.Dispatch(ctx, session.Exercise, session, hb)
}

func toSession(s workout.Summary) *store.Session {
	return &store.Session{
		Exercise:  string(s.Kind),
		Category:  string(s.Kind.Info().Category),
		Target:    s.Target,
		Count:     s.Count,
		Duration:  s.Duration,
		Warnings:  s.Warnings,
		Accuracy:  s.Accuracy,
		Calories:  s.Calories,
		Manual:    s.Manual,
		Completed: s.Completed,
		Issues:    s.Issues,
		StartedAt: s.StartedAt,
	}
}

// Session returns the saved session once the workout has finished.
func (a *App) Session() *store.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *App) active() (workout.Detector, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.det == nil || a.finished {
		return nil, workout.ErrNoWorkout
	}
	return a.det, nil
}

// Snapshot returns the live state of the workout.
func (a *App) Snapshot() (workout.Snapshot, error) {
	det, err := a.active()
	if err != nil {
		return workout.Snapshot{}, err
	}
	return det.Snapshot(), nil
}

// Pause stops counting without losing progress.
func (a *App) Pause() error {
	det, err := a.active()
	if err != nil {
		return err
	}
	det.Stop()
	a.stateChanged()
	return nil
}

// Resume continues a paused workout.
func (a *App) Resume() error {
	det, err := a.active()
	if err != nil {
		return err
	}
	if err := det.Start(); err != nil {
		return err
	}
	a.stateChanged()
	return nil
}

// Reset zeroes the count and phase.
func (a *App) Reset() error {
	det, err := a.active()
	if err != nil {
		return err
	}
	det.Reset()
	return nil
}

// AddRep counts one rep by hand. Only available in manual mode.
func (a *App) AddRep() error {
	det, err := a.active()
	if err != nil {
		return err
	}
	manual, ok := det.(*workout.ManualDetector)
	if !ok {
		return workout.ErrManualOnly
	}
	return manual.AddRep()
}
