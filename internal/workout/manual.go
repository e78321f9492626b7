package workout

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
)

// DefaultManualInterval is how often a time-based exercise counts up in manual mode.
const DefaultManualInterval = time.Second

// ManualConfig configures a ManualDetector.
type ManualConfig struct {
	Kind      exercise.Kind
	Target    int
	Callbacks Callbacks
	// Interval is the count-up period for time-based exercises.
	Interval time.Duration
	Now      func() time.Time
}

// ManualDetector is the fallback used when pose detection cannot start.
// Repetitions are added by the user; time-based exercises count seconds on
// their own while running.
type ManualDetector struct {
	cfg ManualConfig

	mu        sync.Mutex
	state     State
	phase     exercise.Phase
	count     int
	stopwatch *Stopwatch
	stopCh    chan struct{}
	wg        sync.WaitGroup
	startedAt time.Time
}

// NewManualDetector builds an initialized manual detector for cfg.Kind.
func NewManualDetector(cfg ManualConfig) (*ManualDetector, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", exercise.ErrUnsupportedKind, cfg.Kind)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultManualInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Target <= 0 {
		cfg.Target = cfg.Kind.Info().DefaultTarget
	}
	return &ManualDetector{
		cfg:       cfg,
		state:     StateInitialized,
		phase:     exercise.PhaseReady,
		stopwatch: NewStopwatch(cfg.Now),
	}, nil
}

// Announce tells the listener that counting is manual.
func (m *ManualDetector) Announce() {
	m.cfg.Callbacks.formFeedback(exercise.Feedback{
		Message:  ManualModeMessage,
		Severity: exercise.SeverityWarning,
	})
}

func (m *ManualDetector) Start() error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateRunning:
		m.mu.Unlock()
		return nil
	}
	m.state = StateRunning
	m.phase = exercise.PhaseReady
	m.stopwatch.Start()
	if m.startedAt.IsZero() {
		m.startedAt = m.cfg.Now()
	}
	if m.cfg.Kind.TimeBased() {
		m.stopCh = make(chan struct{})
		m.wg.Add(1)
		go m.tick(m.stopCh)
	}
	m.mu.Unlock()

	m.cfg.Callbacks.positionChange(exercise.PhaseReady)
	return nil
}

func (m *ManualDetector) tick(stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if m.state != StateRunning {
			m.mu.Unlock()
			return
		}
		m.count++
		count := m.count
		m.mu.Unlock()

		m.cfg.Callbacks.repComplete(count)
	}
}

func (m *ManualDetector) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *ManualDetector) stopLocked() {
	if m.state != StateRunning {
		return
	}
	m.state = StatePaused
	m.stopwatch.Pause()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

// AddRep counts one repetition and flips the displayed phase.
func (m *ManualDetector) AddRep() error {
	m.mu.Lock()
	if state := m.state; state != StateRunning {
		m.mu.Unlock()
		if state == StateClosed {
			return ErrClosed
		}
		return ErrNotRunning
	}
	m.count++
	if m.phase == exercise.PhaseDown {
		m.phase = exercise.PhaseUp
	} else {
		m.phase = exercise.PhaseDown
	}
	count, phase := m.count, m.phase
	m.mu.Unlock()

	m.cfg.Callbacks.repComplete(count)
	m.cfg.Callbacks.positionChange(phase)
	return nil
}

func (m *ManualDetector) Reset() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.count = 0
	m.phase = exercise.PhaseUp
	m.stopwatch.Reset()
	m.mu.Unlock()

	m.cfg.Callbacks.repComplete(0)
	m.cfg.Callbacks.positionChange(exercise.PhaseUp)
}

func (m *ManualDetector) Cleanup() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.stopLocked()
	m.state = StateClosed
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *ManualDetector) Kind() exercise.Kind { return m.cfg.Kind }
func (m *ManualDetector) Manual() bool        { return true }

func (m *ManualDetector) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *ManualDetector) Phase() exercise.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *ManualDetector) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ManualDetector) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Kind:    m.cfg.Kind,
		State:   m.state,
		Phase:   m.phase,
		Count:   m.count,
		Elapsed: m.stopwatch.Elapsed().Seconds(),
		Manual:  true,
		Feedback: exercise.Feedback{
			Message:  ManualModeMessage,
			Severity: exercise.SeverityWarning,
		},
	}
}

// Summary reports a manual workout. No form was checked, so there are no warnings.
func (m *ManualDetector) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSummary(m.cfg.Kind, m.cfg.Target, m.count, m.stopwatch.Elapsed(), 0, nil)
	s.Manual = true
	s.StartedAt = m.startedAt
	return s
}
