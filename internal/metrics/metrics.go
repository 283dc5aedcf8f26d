package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters and histograms for conversation turns and Slack traffic.
type BotMetrics struct {
	webhookTotal   *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	turnDuration   prometheus.Histogram
	decisionsTotal *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "slack",
			Name:      "webhook_total",
			Help:      "Inbound Slack webhook calls",
		}, []string{"kind", "status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns by matched action and result",
		}, []string{"action", "result"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timeoff",
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "Time to process one message end to end",
			Buckets:   prometheus.DefBuckets,
		}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "leave",
			Name:      "decisions_total",
			Help:      "Leave requests submitted, approved and declined",
		}, []string{"decision"}),
		externalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeoff",
			Subsystem: "external",
			Name:      "errors_total",
			Help:      "Failed calls to Slack, the classifier and the store, after retries",
		}, []string{"service"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.turnsTotal, m.turnDuration, m.decisionsTotal, m.externalErrors)
	return m
}

func (m *BotMetrics) ObserveWebhook(kind, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(kind, status).Inc()
}

// ObserveTurn records one turn; action is empty when nothing matched.
func (m *BotMetrics) ObserveTurn(action, result string, seconds float64) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.turnsTotal.WithLabelValues(action, result).Inc()
	m.turnDuration.Observe(seconds)
}

func (m *BotMetrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(decision).Inc()
}

func (m *BotMetrics) ObserveExternalError(service string) {
	if m == nil {
		return
	}
	m.externalErrors.WithLabelValues(service).Inc()
}
