package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WizardMetrics exposes counters/histograms for wizard flows.
type WizardMetrics struct {
	transitionsTotal *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	submitLatency    *prometheus.HistogramVec
	loginsTotal      *prometheus.CounterVec
}

func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "wizard",
			Name:      "transitions_total",
			Help:      "Total wizard step transitions by action and result",
		}, []string{"flow", "action", "result"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "wizard",
			Name:      "submissions_total",
			Help:      "Total wizard submissions by result",
		}, []string{"flow", "result"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careconnect",
			Subsystem: "wizard",
			Name:      "submit_duration_seconds",
			Help:      "Latency of wizard submissions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careconnect",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total login attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.submissionsTotal, m.submitLatency, m.loginsTotal)
	return m
}

func (m *WizardMetrics) ObserveTransition(flow, action, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(flow, action, result).Inc()
}

func (m *WizardMetrics) ObserveSubmission(flow, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(flow, result).Inc()
	m.submitLatency.WithLabelValues(flow).Observe(elapsed.Seconds())
}

func (m *WizardMetrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}
