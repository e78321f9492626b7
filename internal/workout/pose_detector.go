package workout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ayusman/formcoach/internal/capture"
	"github.com/ayusman/formcoach/internal/estimator"
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
)

// Loop defaults.
const (
	DefaultTargetFPS    = 15
	DefaultTickInterval = time.Second / 30
)

// Config configures a PoseDetector.
type Config struct {
	Kind exercise.Kind
	// Target is the goal count, used by the summary. Zero means the catalog default.
	Target int

	// Source provides frames. The detector opens it on Initialize and closes
	// it on Cleanup.
	Source capture.Source
	// Model is the shared pose model handle.
	Model *estimator.Model
	// Surface receives annotated frames. Nil discards them.
	Surface capture.Surface
	// Gate skips inference on still frames for repetition exercises. Optional.
	Gate *capture.MotionGate

	Callbacks Callbacks

	// MinScore is the keypoint confidence threshold.
	MinScore float64
	// TargetFPS caps how many frames per second are processed.
	TargetFPS int
	// TickInterval is how often the loop wakes up to consider a frame.
	TickInterval time.Duration

	Metrics *metrics.Manager
	Now     func() time.Time
}

func (c *Config) defaults() {
	if c.MinScore <= 0 {
		c.MinScore = pose.DefaultMinScore
	}
	if c.TargetFPS <= 0 {
		c.TargetFPS = DefaultTargetFPS
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Surface == nil {
		c.Surface = capture.NopSurface{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Target <= 0 {
		c.Target = c.Kind.Info().DefaultTarget
	}
}

// PoseDetector counts an exercise from camera frames. A single loop
// goroutine reads a frame, runs the shared pose model and feeds the result to
// the exercise classifier, at most TargetFPS times per second.
type PoseDetector struct {
	cfg         Config
	minInterval time.Duration

	// inferMu keeps frame processing sequential even across a Stop/Start
	// while an inference is still in flight.
	inferMu sync.Mutex

	mu             sync.Mutex
	state          State
	classifier     *exercise.Classifier
	stopwatch      *Stopwatch
	est            estimator.Estimator
	acquired       bool
	gen            uint64
	resets         uint64
	stopCh         chan struct{}
	wg             sync.WaitGroup
	frames         int
	lastProcessed  time.Time
	lastTransition time.Time
	lastFeedback   exercise.Feedback
	warnings       int
	issues         []string
	startedAt      time.Time
}

// NewPoseDetector validates cfg and builds an uninitialized detector.
func NewPoseDetector(cfg Config) (*PoseDetector, error) {
	classifier, err := exercise.NewClassifier(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		return nil, errors.New("pose detector: nil frame source")
	}
	if cfg.Model == nil {
		return nil, errors.New("pose detector: nil pose model")
	}
	cfg.defaults()

	return &PoseDetector{
		cfg:         cfg,
		minInterval: time.Second / time.Duration(cfg.TargetFPS),
		state:       StateUninitialized,
		classifier:  classifier,
		stopwatch:   NewStopwatch(cfg.Now),
	}, nil
}

// Initialize acquires the pose model and opens the frame source. A model
// failure is reported as ErrModelUnavailable so callers can fall back to
// manual counting. Calling it again after success is a no-op.
func (d *PoseDetector) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
	default:
		return nil
	}

	est, err := d.cfg.Model.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if !d.cfg.Source.IsOpen() {
		if err := d.cfg.Source.Open(); err != nil {
			d.cfg.Model.Release()
			return fmt.Errorf("open frame source: %w", err)
		}
	}

	d.est = est
	d.acquired = true
	d.state = StateInitialized
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.GaugeActiveDetectors.Inc()
	}
	log.WithField("exercise", d.cfg.Kind).Debug("pose detector initialized")
	return nil
}

// Start begins the frame loop. No-op if already running.
func (d *PoseDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		return ErrNotInitialized
	case StateRunning:
		return nil
	}

	d.state = StateRunning
	d.stopwatch.Start()
	if d.startedAt.IsZero() {
		d.startedAt = d.cfg.Now()
	}

	d.gen++
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go d.loop(d.gen, d.stopCh)

	return nil
}

// Stop pauses the loop and the stopwatch. An inference already in flight
// finishes, but its result is discarded. Stop does not wait for it.
func (d *PoseDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *PoseDetector) stopLocked() {
	if d.state != StateRunning {
		return
	}
	d.state = StatePaused
	d.stopwatch.Pause()
	close(d.stopCh)
	d.stopCh = nil
}

// Reset zeroes count, phase, stopwatch and feedback history. A running
// detector keeps running. An inference in flight during Reset is discarded.
func (d *PoseDetector) Reset() {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.resets++
	d.classifier.Reset()
	d.stopwatch.Reset()
	d.lastFeedback = exercise.Feedback{}
	d.lastTransition = time.Time{}
	d.warnings = 0
	d.issues = nil
	phase := d.classifier.Phase()
	d.mu.Unlock()

	if d.cfg.Gate != nil {
		d.cfg.Gate.Reset()
	}

	d.cfg.Callbacks.repComplete(0)
	d.cfg.Callbacks.positionChange(phase)
}

// Cleanup stops the loop, waits for it to exit and releases the model,
// source and surface. A stuck inference call delays Cleanup until it returns.
func (d *PoseDetector) Cleanup() error {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil
	}
	d.stopLocked()
	d.state = StateClosed
	acquired := d.acquired
	d.acquired = false
	d.mu.Unlock()

	d.wg.Wait()

	var err error
	err = multierr.Append(err, d.cfg.Surface.Close())
	if d.cfg.Gate != nil {
		d.cfg.Gate.Close()
	}
	if acquired {
		err = multierr.Append(err, d.cfg.Source.Close())
		d.cfg.Model.Release()
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.GaugeActiveDetectors.Dec()
		}
	}
	return err
}

// Step processes one frame immediately, bypassing the rate limit. The
// detector must be running.
func (d *PoseDetector) Step(ctx context.Context) (exercise.Step, error) {
	return d.process(ctx, 0)
}

func (d *PoseDetector) loop(gen uint64, stop <-chan struct{}) {
	defer d.wg.Done()

	ctx := context.Background()
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !d.due() {
			d.skipped("throttle")
			continue
		}

		if _, err := d.process(ctx, gen); err != nil {
			if errors.Is(err, ErrNotRunning) || errors.Is(err, ErrClosed) || errors.Is(err, ErrFrameDiscarded) {
				continue
			}
			log.WithError(err).WithFields(log.Fields{
				"exercise": d.cfg.Kind,
				"frame":    d.frameCount(),
			}).Warn("frame processing failed")
		}
	}
}

// due reports whether enough time has passed since the last processed frame,
// and claims the slot if so.
func (d *PoseDetector) due() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.cfg.Now()
	if !d.lastProcessed.IsZero() && now.Sub(d.lastProcessed) < d.minInterval {
		return false
	}
	d.lastProcessed = now
	return true
}

// checkRunning returns nil if frames may be processed for loop generation
// gen. gen 0 accepts any generation.
func (d *PoseDetector) checkRunning(gen uint64) error {
	switch d.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		return ErrNotInitialized
	case StateRunning:
		if gen != 0 && gen != d.gen {
			return ErrNotRunning
		}
		return nil
	default:
		return ErrNotRunning
	}
}

func (d *PoseDetector) process(ctx context.Context, gen uint64) (exercise.Step, error) {
	d.inferMu.Lock()
	defer d.inferMu.Unlock()

	d.mu.Lock()
	if err := d.checkRunning(gen); err != nil {
		d.mu.Unlock()
		return exercise.Step{}, err
	}
	est := d.est
	resets := d.resets
	d.frames++
	d.mu.Unlock()

	frame, err := d.cfg.Source.ReadFrame()
	if err != nil {
		d.inferenceFailed()
		return exercise.Step{}, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if d.cfg.Gate != nil && !d.cfg.Kind.TimeBased() {
		if ok, _ := d.cfg.Gate.Allow(frame); !ok {
			d.skipped("still")
			return d.idleStep(), nil
		}
	}

	began := time.Now()
	skeletons, err := est.Estimate(ctx, frame)
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.HistInferenceDuration.Observe(time.Since(began).Seconds())
	}
	if err != nil {
		d.inferenceFailed()
		return exercise.Step{}, fmt.Errorf("estimate pose: %w", err)
	}

	sk := bestSkeleton(skeletons).Filter(d.cfg.MinScore)

	d.mu.Lock()
	// Stopped or reset while the model was running: drop the result.
	if err := d.checkRunning(gen); err != nil {
		d.mu.Unlock()
		return exercise.Step{}, err
	}
	if d.resets != resets {
		d.mu.Unlock()
		return exercise.Step{}, ErrFrameDiscarded
	}

	before := d.classifier.Count()
	step := d.classifier.Step(sk, d.stopwatch.Elapsed())
	if step.PhaseChanged() {
		d.lastTransition = d.cfg.Now()
	}

	feedbackChanged := !step.Feedback.IsZero() && step.Feedback != d.lastFeedback
	if feedbackChanged {
		d.lastFeedback = step.Feedback
		if step.Evaluated && step.Feedback.Severity == exercise.SeverityWarning {
			d.recordIssueLocked(step.Feedback.Message)
		}
	}

	overlay := capture.Overlay{
		Skeleton:  sk,
		Phase:     step.Phase,
		Count:     step.Count,
		TimeBased: d.cfg.Kind.TimeBased(),
		Feedback:  d.lastFeedback,
	}
	if step.Evaluated {
		overlay.Label = d.cfg.Kind.Label(step.Features)
	}
	d.mu.Unlock()

	if err := d.cfg.Surface.Render(frame, overlay); err != nil {
		log.WithError(err).Debug("render overlay")
	}

	d.observe(step, step.Count-before)

	cb := d.cfg.Callbacks
	if step.PhaseChanged() {
		cb.positionChange(step.Phase)
	}
	if step.Counted {
		cb.repComplete(step.Count)
	}
	if feedbackChanged {
		cb.formFeedback(step.Feedback)
	}
	cb.angleUpdate(step.Angles)

	return step, nil
}

func (d *PoseDetector) recordIssueLocked(msg string) {
	d.warnings++
	for _, seen := range d.issues {
		if seen == msg {
			return
		}
	}
	d.issues = append(d.issues, msg)
}

func (d *PoseDetector) idleStep() exercise.Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.classifier.Phase()
	return exercise.Step{Previous: p, Phase: p, Count: d.classifier.Count()}
}

func (d *PoseDetector) observe(step exercise.Step, reps int) {
	m := d.cfg.Metrics
	if m == nil {
		return
	}
	kind := string(d.cfg.Kind)
	m.CounterFramesProcessed.WithLabelValues(kind).Inc()
	if step.PhaseChanged() {
		m.CounterPhaseChanges.WithLabelValues(kind, string(step.Phase)).Inc()
	}
	if reps > 0 {
		m.CounterReps.WithLabelValues(kind).Add(float64(reps))
	}
}

func (d *PoseDetector) skipped(reason string) {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.CounterFramesSkipped.WithLabelValues(reason).Inc()
	}
}

func (d *PoseDetector) inferenceFailed() {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.CounterInferenceErrors.WithLabelValues(string(d.cfg.Kind)).Inc()
	}
}

func (d *PoseDetector) frameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func bestSkeleton(skeletons []pose.Skeleton) pose.Skeleton {
	var best pose.Skeleton
	for i, sk := range skeletons {
		if i == 0 || sk.Score > best.Score {
			best = sk
		}
	}
	return best
}

func (d *PoseDetector) Kind() exercise.Kind { return d.cfg.Kind }
func (d *PoseDetector) Manual() bool        { return false }

func (d *PoseDetector) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Count()
}

func (d *PoseDetector) Phase() exercise.Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Phase()
}

func (d *PoseDetector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Elapsed returns the running time of the workout, excluding pauses.
func (d *PoseDetector) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopwatch.Elapsed()
}

func (d *PoseDetector) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Kind:           d.cfg.Kind,
		State:          d.state,
		Phase:          d.classifier.Phase(),
		Count:          d.classifier.Count(),
		Elapsed:        d.stopwatch.Elapsed().Seconds(),
		Feedback:       d.lastFeedback,
		LastTransition: d.lastTransition,
	}
}

func (d *PoseDetector) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := NewSummary(d.cfg.Kind, d.cfg.Target, d.classifier.Count(), d.stopwatch.Elapsed(),
		d.warnings, append([]string(nil), d.issues...))
	s.StartedAt = d.startedAt
	return s
}
