package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the response pipeline.
type PipelineMetrics struct {
	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mitai",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Total model-pipeline stage executions",
		}, []string{"stage", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mitai",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of model-pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stageTotal, m.stageDuration)
	return m
}

func (m *PipelineMetrics) ObserveStage(stage, status string, seconds float64) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ChannelMetrics counts adapter requests and outbound messaging sends.
type ChannelMetrics struct {
	requestsTotal *prometheus.CounterVec
	sendsTotal    *prometheus.CounterVec
}

func NewChannelMetrics(reg prometheus.Registerer) *ChannelMetrics {
	m := &ChannelMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mitai",
			Subsystem: "channels",
			Name:      "requests_total",
			Help:      "Total channel-adapter requests",
		}, []string{"channel", "status"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mitai",
			Subsystem: "channels",
			Name:      "outbound_sends_total",
			Help:      "Total outbound message sends",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.sendsTotal)
	return m
}

func (m *ChannelMetrics) ObserveRequest(channel, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(channel, status).Inc()
}

func (m *ChannelMetrics) ObserveSend(channel, status string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(channel, status).Inc()
}
