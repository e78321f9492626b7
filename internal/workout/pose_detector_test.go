package workout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formcoach/internal/capture"
	"github.com/ayusman/formcoach/internal/estimator"
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/pose/posetest"
	"github.com/ayusman/formcoach/internal/workout"
)

type harness struct {
	det     *workout.PoseDetector
	est     *estimator.MockEstimator
	model   *estimator.Model
	src     *capture.MockSource
	surface *capture.MockSurface
	clock   *fakeClock
	metrics *metrics.Manager
	rec     *recorder
}

func newHarness(t *testing.T, kind exercise.Kind, tweak ...func(*workout.Config)) *harness {
	t.Helper()

	h := &harness{
		est:     estimator.NewMockEstimator(),
		src:     capture.NewBlankSource(64, 48),
		surface: &capture.MockSurface{},
		clock:   newFakeClock(),
		metrics: metrics.NewTestManager(),
		rec:     &recorder{},
	}
	h.model = estimator.NewModel(func() (estimator.Estimator, error) { return h.est, nil })

	cfg := workout.Config{
		Kind:         kind,
		Source:       h.src,
		Model:        h.model,
		Surface:      h.surface,
		Callbacks:    h.rec.callbacks(),
		TickInterval: time.Hour,
		Metrics:      h.metrics,
		Now:          h.clock.Now,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	det, err := workout.NewPoseDetector(cfg)
	require.NoError(t, err)
	h.det = det
	t.Cleanup(func() {
		assert.NoError(t, det.Cleanup())
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.det.Initialize(context.Background()))
	require.NoError(t, h.det.Start())
}

func (h *harness) step(t *testing.T, sk pose.Skeleton) exercise.Step {
	t.Helper()
	h.est.SetPoses(sk)
	step, err := h.det.Step(context.Background())
	require.NoError(t, err)
	return step
}

func TestNewPoseDetector_Validation(t *testing.T) {
	model := estimator.NewModel(func() (estimator.Estimator, error) { return estimator.NewMockEstimator(), nil })
	src := capture.NewBlankSource(8, 8)

	_, err := workout.NewPoseDetector(workout.Config{Kind: "burpees", Source: src, Model: model})
	assert.ErrorIs(t, err, exercise.ErrUnsupportedKind)

	_, err = workout.NewPoseDetector(workout.Config{Kind: exercise.Squats, Model: model})
	assert.Error(t, err)

	_, err = workout.NewPoseDetector(workout.Config{Kind: exercise.Squats, Source: src})
	assert.Error(t, err)
}

func TestPoseDetector_Lifecycle(t *testing.T) {
	h := newHarness(t, exercise.PushUps)

	assert.Equal(t, workout.StateUninitialized, h.det.State())
	assert.ErrorIs(t, h.det.Start(), workout.ErrNotInitialized)
	_, err := h.det.Step(context.Background())
	assert.ErrorIs(t, err, workout.ErrNotInitialized)

	require.NoError(t, h.det.Initialize(context.Background()))
	require.NoError(t, h.det.Initialize(context.Background()), "second initialize is a no-op")
	assert.Equal(t, workout.StateInitialized, h.det.State())
	assert.True(t, h.src.IsOpen())
	assert.Equal(t, 1, h.model.Refs())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GaugeActiveDetectors))

	require.NoError(t, h.det.Start())
	require.NoError(t, h.det.Start())
	assert.Equal(t, workout.StateRunning, h.det.State())

	h.det.Stop()
	h.det.Stop()
	assert.Equal(t, workout.StatePaused, h.det.State())

	require.NoError(t, h.det.Cleanup())
	require.NoError(t, h.det.Cleanup())
	assert.Equal(t, workout.StateClosed, h.det.State())
	assert.False(t, h.src.IsOpen())
	assert.Equal(t, 0, h.model.Refs())
	assert.Equal(t, 1, h.surface.Closed())
	assert.False(t, h.est.Closed(), "the shared model outlives the detector")
	assert.Zero(t, testutil.ToFloat64(h.metrics.GaugeActiveDetectors))

	assert.ErrorIs(t, h.det.Start(), workout.ErrClosed)
	assert.ErrorIs(t, h.det.Initialize(context.Background()), workout.ErrClosed)
}

func TestPoseDetector_InitializeModelFailure(t *testing.T) {
	boom := errors.New("no python")
	model := estimator.NewModel(func() (estimator.Estimator, error) { return nil, boom })

	det, err := workout.NewPoseDetector(workout.Config{
		Kind:   exercise.Squats,
		Source: capture.NewBlankSource(8, 8),
		Model:  model,
	})
	require.NoError(t, err)

	err = det.Initialize(context.Background())
	assert.ErrorIs(t, err, workout.ErrModelUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, workout.StateUninitialized, det.State())
	assert.NoError(t, det.Cleanup())
}

func TestPoseDetector_InitializeCanceled(t *testing.T) {
	h := newHarness(t, exercise.Squats)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.det.Initialize(ctx), context.Canceled)
	assert.False(t, h.model.Loaded())
}

func TestPoseDetector_PushUpCallbacks(t *testing.T) {
	h := newHarness(t, exercise.PushUps)
	h.start(t)

	h.step(t, posetest.PushUp(150))
	step := h.step(t, posetest.PushUp(90))
	assert.Equal(t, exercise.PhaseDown, step.Phase)
	step = h.step(t, posetest.PushUp(150))
	assert.Equal(t, exercise.PhaseUp, step.Phase)
	assert.True(t, step.Counted)

	assert.Equal(t, 1, h.det.Count())
	assert.Equal(t, []int{1}, h.rec.Reps())
	assert.Equal(t, []exercise.Phase{exercise.PhaseDown, exercise.PhaseUp}, h.rec.Positions())

	feedback := h.rec.Feedback()
	require.Len(t, feedback, 1, "identical feedback is reported once")
	assert.Equal(t, exercise.MsgGoodForm, feedback[0].Message)
	assert.Equal(t, 3, h.rec.Angles())

	overlays := h.surface.Overlays()
	require.Len(t, overlays, 3)
	assert.Equal(t, 1, overlays[2].Count)
	assert.Equal(t, "Reps: 1", overlays[2].CountLine())

	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.CounterFramesProcessed.WithLabelValues("pushups")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CounterReps.WithLabelValues("pushups")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CounterPhaseChanges.WithLabelValues("pushups", "DOWN")))
}

func TestPoseDetector_PicksMostConfidentSkeleton(t *testing.T) {
	h := newHarness(t, exercise.PushUps)
	h.start(t)

	down := posetest.PushUp(90)
	down.Score = 0.95
	up := posetest.PushUp(150)
	up.Score = 0.4

	h.est.SetPoses(up, down)
	step, err := h.det.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exercise.PhaseDown, step.Phase)
}

func TestPoseDetector_LowConfidenceKeypointsIgnored(t *testing.T) {
	h := newHarness(t, exercise.Squats)
	h.start(t)

	sk := posetest.Squat(90)
	for i := range sk.Keypoints {
		if sk.Keypoints[i].Name == pose.LeftKnee {
			sk.Keypoints[i].Score = 0.1
		}
	}

	step := h.step(t, sk)
	assert.False(t, step.Evaluated)
	assert.Equal(t, exercise.PhaseUp, h.det.Phase())
	assert.Equal(t, exercise.SeverityWarning, step.Feedback.Severity)
	assert.Empty(t, h.rec.Positions())
}

func TestPoseDetector_NoBody(t *testing.T) {
	h := newHarness(t, exercise.JumpingJacks)
	h.start(t)

	h.est.SetPoses()
	step, err := h.det.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, step.Evaluated)
	assert.Equal(t, exercise.PhaseIn, step.Phase)

	feedback := h.rec.Feedback()
	require.Len(t, feedback, 1)
	assert.Equal(t, exercise.NoBodyMessage, feedback[0].Message)
	assert.Equal(t, exercise.SeverityError, feedback[0].Severity)
	assert.Zero(t, h.rec.Angles())
}

func TestPoseDetector_PlankPauseDoesNotCount(t *testing.T) {
	h := newHarness(t, exercise.Plank)
	h.start(t)

	step := h.step(t, posetest.Plank(0))
	assert.Equal(t, exercise.PhaseHold, step.Phase)
	assert.Equal(t, 0, step.Count)

	h.clock.Advance(5 * time.Second)
	step = h.step(t, posetest.Plank(0))
	assert.Equal(t, 5, step.Count)
	assert.True(t, step.Counted)

	h.det.Stop()
	h.clock.Advance(3 * time.Second)
	_, err := h.det.Step(context.Background())
	assert.ErrorIs(t, err, workout.ErrNotRunning)

	require.NoError(t, h.det.Start())
	step = h.step(t, posetest.Plank(0))
	assert.Equal(t, 5, step.Count, "paused time is not held time")

	h.clock.Advance(time.Second)
	step = h.step(t, posetest.Plank(0))
	assert.Equal(t, 6, step.Count)

	assert.Equal(t, []int{5, 6}, h.rec.Reps())
	overlays := h.surface.Overlays()
	assert.Equal(t, "Time: 6s", overlays[len(overlays)-1].CountLine())

	snap := h.det.Snapshot()
	assert.Equal(t, 6.0, snap.Elapsed)
	assert.Equal(t, exercise.PhaseHold, snap.Phase)
	assert.Equal(t, exercise.MsgPerfectPlank, snap.Feedback.Message)
}

func TestPoseDetector_StopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, exercise.PushUps)
	h.start(t)

	h.est.SetPoses(posetest.PushUp(90))
	release := h.est.Block()

	done := make(chan error, 1)
	go func() {
		_, err := h.det.Step(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.est.Calls() == 1 }, time.Second, time.Millisecond)
	h.det.Stop()
	release()

	assert.ErrorIs(t, <-done, workout.ErrNotRunning)
	assert.Equal(t, exercise.PhaseUp, h.det.Phase(), "result of the stale inference is dropped")
	assert.Empty(t, h.rec.Positions())
	assert.Empty(t, h.surface.Overlays())
}

func TestPoseDetector_ResetDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, exercise.PushUps)
	h.start(t)

	h.est.SetPoses(posetest.PushUp(90))
	release := h.est.Block()

	done := make(chan error, 1)
	go func() {
		_, err := h.det.Step(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.est.Calls() == 1 }, time.Second, time.Millisecond)
	h.det.Reset()
	release()

	assert.ErrorIs(t, <-done, workout.ErrFrameDiscarded)
	assert.Equal(t, exercise.PhaseUp, h.det.Phase(), "a frame captured before the reset is not applied")
	assert.Equal(t, workout.StateRunning, h.det.State())

	// The descent started before the reset, so coming back up is not a rep.
	step := h.step(t, posetest.PushUp(150))
	assert.False(t, step.Counted)
	assert.Equal(t, 0, h.det.Count())
	assert.Len(t, h.surface.Overlays(), 1, "only the frame after the reset is rendered")
}

func TestPoseDetector_EstimateError(t *testing.T) {
	h := newHarness(t, exercise.Squats)
	h.start(t)

	h.est.SetError(errors.New("pipe closed"))
	_, err := h.det.Step(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CounterInferenceErrors.WithLabelValues("squats")))
	assert.Equal(t, workout.StateRunning, h.det.State(), "a failed frame does not stop the workout")
}

func TestPoseDetector_Reset(t *testing.T) {
	h := newHarness(t, exercise.Squats)
	h.start(t)

	h.step(t, posetest.Squat(170))
	h.step(t, posetest.Squat(100))
	h.step(t, posetest.Squat(170))
	require.Equal(t, 1, h.det.Count())

	h.det.Reset()
	assert.Equal(t, 0, h.det.Count())
	assert.Equal(t, exercise.PhaseUp, h.det.Phase())
	assert.Equal(t, workout.StateRunning, h.det.State())
	assert.Equal(t, []int{1, 0}, h.rec.Reps())

	step := h.step(t, posetest.Squat(100))
	assert.Equal(t, exercise.PhaseDown, step.Phase)
}

func TestPoseDetector_Summary(t *testing.T) {
	h := newHarness(t, exercise.PushUps, func(c *workout.Config) { c.Target = 2 })
	h.start(t)
	started := h.clock.Now()

	h.step(t, posetest.PushUp(150))
	h.step(t, posetest.PushUp(240))
	h.step(t, posetest.PushUp(90))
	h.step(t, posetest.PushUp(240))
	h.clock.Advance(20 * time.Second)
	h.step(t, posetest.PushUp(150))

	s := h.det.Summary()
	assert.Equal(t, exercise.PushUps, s.Kind)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 2, s.Target)
	assert.False(t, s.Completed)
	assert.Equal(t, 2, s.Warnings)
	assert.Equal(t, []string{exercise.MsgElbowsIn}, s.Issues)
	assert.Equal(t, 20*time.Second, s.Duration)
	assert.Equal(t, started, s.StartedAt)
	assert.False(t, s.Manual)
}

func TestPoseDetector_MotionGateSkipsStillFrames(t *testing.T) {
	gate := capture.NewMotionGate(capture.DefaultMotionPercent, 0)
	h := newHarness(t, exercise.PushUps, func(c *workout.Config) { c.Gate = gate })
	h.start(t)

	h.step(t, posetest.PushUp(150))
	h.step(t, posetest.PushUp(150))
	h.step(t, posetest.PushUp(150))

	assert.Equal(t, 1, h.est.Calls(), "identical blank frames after the first are still")
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.CounterFramesSkipped.WithLabelValues("still")))
}

func TestPoseDetector_MotionGateIgnoredForPlank(t *testing.T) {
	gate := capture.NewMotionGate(capture.DefaultMotionPercent, 0)
	h := newHarness(t, exercise.Plank, func(c *workout.Config) { c.Gate = gate })
	h.start(t)

	h.step(t, posetest.Plank(0))
	h.step(t, posetest.Plank(0))
	assert.Equal(t, 2, h.est.Calls())
}

func TestPoseDetector_LoopProcessesFrames(t *testing.T) {
	h := newHarness(t, exercise.PushUps, func(c *workout.Config) {
		c.TickInterval = time.Millisecond
		c.TargetFPS = 1000
		c.Now = nil
	})
	h.est.SetPoses(posetest.PushUp(90))
	h.start(t)

	require.Eventually(t, func() bool { return h.det.Phase() == exercise.PhaseDown }, 2*time.Second, time.Millisecond)

	h.est.SetPoses(posetest.PushUp(150))
	require.Eventually(t, func() bool { return h.det.Count() == 1 }, 2*time.Second, time.Millisecond)

	h.det.Stop()
	calls := h.est.Calls()
	require.NoError(t, h.det.Cleanup())
	assert.LessOrEqual(t, h.est.Calls(), calls+1, "at most the in-flight frame finishes after stop")
}

func TestPoseDetector_LoopThrottles(t *testing.T) {
	h := newHarness(t, exercise.Squats, func(c *workout.Config) {
		c.TickInterval = time.Millisecond
		c.TargetFPS = 1
	})
	h.est.SetPoses(posetest.Squat(170))
	h.start(t)

	skipped := h.metrics.CounterFramesSkipped.WithLabelValues("throttle")
	require.Eventually(t, func() bool { return testutil.ToFloat64(skipped) >= 5 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 1, h.est.Calls(), "the frozen clock never frees another slot")

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.est.Calls() == 2 }, 2*time.Second, time.Millisecond)
}

func TestPoseDetector_SharedModel(t *testing.T) {
	est := estimator.NewMockEstimator()
	created := 0
	model := estimator.NewModel(func() (estimator.Estimator, error) {
		created++
		return est, nil
	})

	var dets []*workout.PoseDetector
	for _, kind := range []exercise.Kind{exercise.Squats, exercise.Plank} {
		det, err := workout.NewPoseDetector(workout.Config{
			Kind:   kind,
			Source: capture.NewBlankSource(8, 8),
			Model:  model,
		})
		require.NoError(t, err)
		require.NoError(t, det.Initialize(context.Background()))
		dets = append(dets, det)
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, 2, model.Refs())

	for _, det := range dets {
		require.NoError(t, det.Cleanup())
	}
	assert.Equal(t, 0, model.Refs())
	assert.True(t, model.Loaded())

	require.NoError(t, model.Close())
	assert.True(t, est.Closed())
}
