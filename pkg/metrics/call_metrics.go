package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallMetrics holds the call-session lifecycle counters. It satisfies the
// coordinator's recorder interface.
type CallMetrics struct {
	sessionsActive     prometheus.Gauge
	sessionsTotal      prometheus.Counter
	participantsActive prometheus.Gauge
	participantsTotal  prometheus.Counter
	callsStartedTotal  prometheus.Counter
	callsEndedTotal    *prometheus.CounterVec
	callDuration       prometheus.Histogram
	signalsRelayed     *prometheus.CounterVec
}

// NewCallMetrics creates and registers call-session metrics
func NewCallMetrics(serviceName string) *CallMetrics {
	labels := prometheus.Labels{"service": serviceName}
	return &CallMetrics{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "call_sessions_active",
			Help:        "Number of live call sessions",
			ConstLabels: labels,
		}),
		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "call_sessions_total",
			Help:        "Total number of call sessions created",
			ConstLabels: labels,
		}),
		participantsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "call_participants_active",
			Help:        "Number of participants currently attached to sessions",
			ConstLabels: labels,
		}),
		participantsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "call_participants_total",
			Help:        "Total number of participant joins",
			ConstLabels: labels,
		}),
		callsStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "calls_started_total",
			Help:        "Total number of calls that went live",
			ConstLabels: labels,
		}),
		callsEndedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "calls_ended_total",
			Help:        "Total number of finalized calls by terminal status",
			ConstLabels: labels,
		}, []string{"status"}),
		callDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "call_duration_seconds",
			Help:        "Call duration in seconds",
			ConstLabels: labels,
			Buckets:     []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		signalsRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "call_signals_relayed_total",
			Help:        "Total number of relayed signaling envelopes by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
}

// SessionCreated records a new live session
func (m *CallMetrics) SessionCreated() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

// SessionRemoved records a session leaving the registry
func (m *CallMetrics) SessionRemoved() {
	m.sessionsActive.Dec()
}

// ParticipantJoined records a participant attaching to a session
func (m *CallMetrics) ParticipantJoined() {
	m.participantsActive.Inc()
	m.participantsTotal.Inc()
}

// ParticipantLeft records a participant detaching from a session
func (m *CallMetrics) ParticipantLeft() {
	m.participantsActive.Dec()
}

// CallStarted records a call entering the live state
func (m *CallMetrics) CallStarted() {
	m.callsStartedTotal.Inc()
}

// CallEnded records a finalized call with its terminal status and duration
func (m *CallMetrics) CallEnded(status string, duration time.Duration) {
	m.callsEndedTotal.WithLabelValues(status).Inc()
	m.callDuration.Observe(duration.Seconds())
}

// SignalRelayed records one relayed signaling envelope
func (m *CallMetrics) SignalRelayed(kind string) {
	m.signalsRelayed.WithLabelValues(kind).Inc()
}
