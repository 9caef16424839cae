package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "realty"

// ExtractionMetrics exposes counters/histograms for the extraction resolver.
type ExtractionMetrics struct {
	pollsTotal   *prometheus.CounterVec
	pollLatency  *prometheus.HistogramVec
	resolutions  prometheus.Counter
	invalidation prometheus.Counter
}

func NewExtractionMetrics(reg prometheus.Registerer) *ExtractionMetrics {
	m := &ExtractionMetrics{
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "polls_total",
			Help:      "Extraction polls by phase and outcome",
		}, []string{"phase", "outcome"}),
		pollLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "poll_latency_seconds",
			Help:      "Latency of extraction polls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "resolutions_total",
			Help:      "Document ids resolved from a call id",
		}),
		invalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "call_invalidations_total",
			Help:      "Cache invalidations caused by a call id change",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pollsTotal, m.pollLatency, m.resolutions, m.invalidation)
	return m
}

// ObservePoll records one poll. Outcome is "data", "empty" or "error".
func (m *ExtractionMetrics) ObservePoll(phase, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(phase, outcome).Inc()
	m.pollLatency.WithLabelValues(phase).Observe(seconds)
}

func (m *ExtractionMetrics) ObserveResolution() {
	if m == nil {
		return
	}
	m.resolutions.Inc()
}

func (m *ExtractionMetrics) ObserveInvalidation() {
	if m == nil {
		return
	}
	m.invalidation.Inc()
}

// ScenarioMetrics exposes counters/histograms for scenario execution.
type ScenarioMetrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	checksTotal *prometheus.CounterVec
}

func NewScenarioMetrics(reg prometheus.Registerer) *ScenarioMetrics {
	m := &ScenarioMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "runs_total",
			Help:      "Scenario runs by final status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "run_duration_seconds",
			Help:      "Wall time of scenario runs",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "checks_total",
			Help:      "Turn checks by type and result",
		}, []string{"type", "passed"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.checksTotal)
	return m
}

func (m *ScenarioMetrics) ObserveRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(seconds)
}

func (m *ScenarioMetrics) ObserveCheck(checkType string, passed bool) {
	if m == nil {
		return
	}
	label := "false"
	if passed {
		label = "true"
	}
	m.checksTotal.WithLabelValues(checkType, label).Inc()
}
