// Package metrics exposes Prometheus collectors for slot resolution and booking.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics tracks resolver and committer outcomes.
type SchedulingMetrics struct {
	resolveTotal    *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
	bookingTotal    *prometheus.CounterVec
	bookingLatency  prometheus.Histogram
	wizardStepTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medibook",
			Subsystem: "scheduling",
			Name:      "slot_resolve_total",
			Help:      "Total slot availability resolutions",
		}, []string{"outcome"}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medibook",
			Subsystem: "scheduling",
			Name:      "slot_resolve_seconds",
			Help:      "Latency of slot availability resolution",
			Buckets:   prometheus.DefBuckets,
		}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medibook",
			Subsystem: "scheduling",
			Name:      "booking_commit_total",
			Help:      "Total booking commit attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medibook",
			Subsystem: "scheduling",
			Name:      "booking_commit_seconds",
			Help:      "Latency of booking commits",
			Buckets:   prometheus.DefBuckets,
		}),
		wizardStepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medibook",
			Subsystem: "wizard",
			Name:      "transition_total",
			Help:      "Booking wizard transitions by step and direction",
		}, []string{"step", "direction"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolveTotal, m.resolveLatency, m.bookingTotal, m.bookingLatency, m.wizardStepTotal)
	return m
}

// ObserveResolve records one resolution. outcome is "ok", "empty" or "error".
func (m *SchedulingMetrics) ObserveResolve(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(outcome).Inc()
	m.resolveLatency.Observe(seconds)
}

// ObserveBooking records one commit attempt. outcome is "created", "capacity",
// "validation", "not_found" or "error".
func (m *SchedulingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveWizardStep(step, direction string) {
	if m == nil {
		return
	}
	m.wizardStepTotal.WithLabelValues(step, direction).Inc()
}
