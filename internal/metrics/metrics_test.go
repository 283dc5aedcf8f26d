package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)

	m.ObserveWebhook("event_callback", "queued")
	m.ObserveTurn("StartTimeOff", "ok", 0.2)
	m.ObserveTurn("", "no_match", 0.1)
	m.ObserveDecision("approved")
	m.ObserveExternalError("slack")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookTotal.WithLabelValues("event_callback", "queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("none", "no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.externalErrors.WithLabelValues("slack")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, f := range families {
		if f.GetName() == "timeoff_conversation_turn_duration_seconds" {
			samples = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestBotMetrics_NilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveWebhook("kind", "status")
	m.ObserveTurn("a", "ok", 0.1)
	m.ObserveDecision("approved")
	m.ObserveExternalError("store")
}
