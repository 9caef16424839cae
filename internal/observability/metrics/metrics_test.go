package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestExtractionMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewExtractionMetrics(reg)
	m.ObservePoll("discovering", "empty", 0.01)
	m.ObservePoll("discovering", "data", 0.02)
	m.ObservePoll("polling", "data", 0.01)
	m.ObserveResolution()
	m.ObserveInvalidation()

	if got := testutil.ToFloat64(m.pollsTotal.WithLabelValues("discovering", "empty")); got != 1 {
		t.Fatalf("expected 1 empty discovering poll, got %v", got)
	}
	if got := testutil.ToFloat64(m.resolutions); got != 1 {
		t.Fatalf("expected 1 resolution, got %v", got)
	}
}

func TestScenarioMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScenarioMetrics(reg)
	m.ObserveRun("passed", 1.2)
	m.ObserveRun("failed", 0.4)
	m.ObserveCheck("contains", true)
	m.ObserveCheck("contains", false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var runs *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "realty_scenario_runs_total" {
			runs = f
		}
	}
	if runs == nil {
		t.Fatal("runs_total not registered")
	}
	if len(runs.GetMetric()) != 2 {
		t.Fatalf("expected 2 status series, got %d", len(runs.GetMetric()))
	}
	if got := testutil.ToFloat64(m.checksTotal.WithLabelValues("contains", "false")); got != 1 {
		t.Fatalf("expected 1 failed contains check, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var e *ExtractionMetrics
	e.ObservePoll("polling", "data", 0.1)
	e.ObserveResolution()
	e.ObserveInvalidation()

	var s *ScenarioMetrics
	s.ObserveRun("passed", 1)
	s.ObserveCheck("tool_call", true)
}
