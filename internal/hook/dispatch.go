package hook

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/metrics"
)

// Binding selects a hook and the configuration it runs with.
type Binding struct {
	Hook   string
	Config json.RawMessage
}

// Dispatcher hands finished sessions to bound hooks.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	metrics  *metrics.Manager
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(manager *Manager, executor *Executor, m *metrics.Manager) *Dispatcher {
	return &Dispatcher{manager: manager, executor: executor, metrics: m}
}

// Dispatch runs each bound hook that accepts exercise, in order. Failures
// are logged and never stop the remaining hooks. It returns the number of
// hooks that succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, exercise string, session any, bindings []Binding) int {
	if len(bindings) == 0 {
		return 0
	}

	payload, err := json.Marshal(session)
	if err != nil {
		log.WithError(err).Error("marshal session for hooks")
		return 0
	}

	ok := 0
	for _, b := range bindings {
		logger := log.WithFields(log.Fields{"hook": b.Hook, "exercise": exercise})

		h, err := d.manager.Get(b.Hook)
		if err != nil {
			logger.WithError(err).Warn("bound hook is not installed")
			d.count(b.Hook, "missing")
			continue
		}
		if !h.Manifest.Accepts(exercise) {
			d.count(b.Hook, "skipped")
			continue
		}

		config := b.Config
		if len(config) == 0 {
			config = json.RawMessage("{}")
		}
		_, err = d.executor.Execute(ctx, h, &Request{
			Event:   EventSessionCompleted,
			Config:  config,
			Session: payload,
		})
		if err != nil {
			logger.WithError(err).Warn("export hook failed")
			d.count(b.Hook, "error")
			continue
		}

		logger.Debug("export hook finished")
		d.count(b.Hook, "ok")
		ok++
	}
	return ok
}

func (d *Dispatcher) count(hook, status string) {
	if d.metrics != nil {
		d.metrics.CounterHookRuns.WithLabelValues(hook, status).Inc()
	}
}
