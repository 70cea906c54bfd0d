package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the redaction pipeline.
type PipelineMetrics struct {
	documentsTotal *prometheus.CounterVec
	entitiesTotal  *prometheus.CounterVec
	modelFailures  *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	riskScore      prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseguard",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents processed, by audit status and extraction method",
		}, []string{"status", "method"}),
		entitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseguard",
			Subsystem: "pipeline",
			Name:      "entities_total",
			Help:      "Entities surviving the merge, by type and source",
		}, []string{"type", "source"}),
		modelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseguard",
			Subsystem: "detector",
			Name:      "model_failures_total",
			Help:      "Model detector calls that degraded to pattern-only detection",
		}, []string{"reason"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caseguard",
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caseguard",
			Subsystem: "pipeline",
			Name:      "risk_score",
			Help:      "Distribution of document risk scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.documentsTotal, m.entitiesTotal, m.modelFailures, m.stageLatency, m.riskScore)
	return m
}

func (m *PipelineMetrics) ObserveDocument(status, method string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(status, method).Inc()
}

func (m *PipelineMetrics) ObserveEntity(piiType, source string) {
	if m == nil {
		return
	}
	m.entitiesTotal.WithLabelValues(piiType, source).Inc()
}

func (m *PipelineMetrics) ObserveModelFailure(reason string) {
	if m == nil {
		return
	}
	m.modelFailures.WithLabelValues(reason).Inc()
}

func (m *PipelineMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *PipelineMetrics) ObserveRiskScore(score int) {
	if m == nil {
		return
	}
	m.riskScore.Observe(float64(score))
}
