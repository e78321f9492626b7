package estimator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrModelClosed is returned by Acquire after the model has been closed.
var ErrModelClosed = errors.New("pose model closed")

// Factory creates the underlying estimator.
type Factory func() (Estimator, error)

// Model is the process-wide pose model handle shared by all detectors.
// The estimator is created on the first successful Acquire and lives until
// Close; a failed creation is retried by the next Acquire.
type Model struct {
	factory Factory

	mu     sync.Mutex
	est    Estimator
	refs   int
	closed bool
}

// NewModel creates a handle that builds its estimator with factory on demand.
func NewModel(factory Factory) *Model {
	return &Model{factory: factory}
}

// Acquire returns the shared estimator, creating it on first use.
// Every successful Acquire should be paired with a Release.
func (m *Model) Acquire() (Estimator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrModelClosed
	}

	if m.est == nil {
		est, err := m.factory()
		if err != nil {
			return nil, fmt.Errorf("create pose model: %w", err)
		}
		m.est = est
	}

	m.refs++
	return m.est, nil
}

// Release drops one reference. The estimator stays loaded for later detectors.
func (m *Model) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs > 0 {
		m.refs--
	}
}

// Refs returns the number of detectors currently holding the model.
func (m *Model) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Loaded reports whether the estimator has been created.
func (m *Model) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.est != nil
}

// Close tears the estimator down. It is meant for application shutdown and
// is safe to call more than once.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.est == nil {
		return nil
	}
	err := m.est.Close()
	m.est = nil
	return err
}
