package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestPipelineMetrics_NilSafe(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.ObserveStage("summarize", "ok", 0.1)
	})
}

func TestChannelMetrics_NilSafe(t *testing.T) {
	var m *ChannelMetrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("chat", "ok")
		m.ObserveSend("whatsapp", "error")
	})
}

func TestNewPipelineMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.ObserveStage("advise", "ok", 0.2)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewChannelMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChannelMetrics(reg)
	m.ObserveRequest("voice", "ok")

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
