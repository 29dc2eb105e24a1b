package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulingMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveResolve("ok", 0.01)
	m.ObserveResolve("ok", 0.02)
	m.ObserveResolve("empty", 0.01)
	m.ObserveBooking("created", 0.05)
	m.ObserveBooking("capacity", 0.03)
	m.ObserveWizardStep("time_selection", "forward")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolveTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolveTotal.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingTotal.WithLabelValues("capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wizardStepTotal.WithLabelValues("time_selection", "forward")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["medibook_scheduling_booking_commit_seconds"])
	assert.True(t, names["medibook_scheduling_slot_resolve_seconds"])
}

func TestSchedulingMetrics_NilReceiver(t *testing.T) {
	var m *SchedulingMetrics
	assert.NotPanics(t, func() {
		m.ObserveResolve("ok", 1)
		m.ObserveBooking("created", 1)
		m.ObserveWizardStep("patient_info", "back")
	})
}
