package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWizardMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWizardMetrics(reg)
	m.ObserveTransition("booking", "advance", "ok")
	m.ObserveTransition("booking", "advance", "ok")
	m.ObserveTransition("booking", "advance", "invalid")
	m.ObserveSubmission("booking", "ok", 250*time.Millisecond)
	m.ObserveLogin("invalid_credentials")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	family := findFamily(families, "careconnect_wizard_transitions_total")
	if family == nil {
		t.Fatalf("transitions metric not registered")
	}
	var okCount float64
	for _, metric := range family.GetMetric() {
		if hasLabel(metric, "result", "ok") {
			okCount = metric.GetCounter().GetValue()
		}
	}
	if okCount != 2 {
		t.Fatalf("expected 2 ok transitions, got %v", okCount)
	}
	if findFamily(families, "careconnect_wizard_submit_duration_seconds") == nil {
		t.Fatalf("submit latency metric not registered")
	}
	if findFamily(families, "careconnect_auth_logins_total") == nil {
		t.Fatalf("logins metric not registered")
	}
}

func TestWizardMetricsNilSafe(t *testing.T) {
	var m *WizardMetrics
	m.ObserveTransition("booking", "advance", "ok")
	m.ObserveSubmission("booking", "ok", time.Second)
	m.ObserveLogin("ok")
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
