package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RegistersCollectors(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	require.NotNil(t, m)

	m.CounterReps.WithLabelValues("squats").Add(3)
	m.CounterPhaseChanges.WithLabelValues("squats", "DOWN").Inc()
	m.CounterFallbacks.Inc()
	m.GaugeActiveDetectors.Set(2)
	m.HistInferenceDuration.Observe(0.04)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CounterReps.WithLabelValues("squats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterFallbacks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GaugeActiveDetectors))

	count, err := testutil.GatherAndCount(reg, "formcoach_test_inference_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewTestManager_Isolated(t *testing.T) {
	// Each test manager owns its registry, so building two must not panic
	// with duplicate registration.
	a := NewTestManager()
	b := NewTestManager()

	a.CounterFallbacks.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CounterFallbacks))
}
