package workout

import "time"

// Stopwatch measures running time only. Time spent paused is not counted.
// It is not safe for concurrent use.
type Stopwatch struct {
	now     func() time.Time
	started time.Time
	elapsed time.Duration
	running bool
}

// NewStopwatch creates a stopped stopwatch reading time from now.
func NewStopwatch(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// Start resumes accumulation. No-op if already running.
func (s *Stopwatch) Start() {
	if s.running {
		return
	}
	s.started = s.now()
	s.running = true
}

// Pause stops accumulation, keeping what has been measured.
func (s *Stopwatch) Pause() {
	if !s.running {
		return
	}
	s.elapsed += s.now().Sub(s.started)
	s.running = false
}

// Reset zeroes the measured time. A running stopwatch keeps running from now.
func (s *Stopwatch) Reset() {
	s.elapsed = 0
	if s.running {
		s.started = s.now()
	}
}

// Elapsed returns the accumulated running time.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.running {
		return s.elapsed + s.now().Sub(s.started)
	}
	return s.elapsed
}

// Running reports whether time is currently accumulating.
func (s *Stopwatch) Running() bool {
	return s.running
}
