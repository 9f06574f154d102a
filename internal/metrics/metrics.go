package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the runtime counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands            *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	writeDuration       prometheus.Histogram
	recoveries          *prometheus.CounterVec
	restTimersStarted   prometheus.Counter
	sessionsFinished    prometheus.Counter
}

// New registers the runtime metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workout_commands_total",
			Help: "Session commands handled by outcome",
		}, []string{"command", "outcome"}),
		persistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workout_persistence_failures_total",
			Help: "Durable writes that failed, by operation",
		}, []string{"operation"}),
		writeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "workout_write_duration_seconds",
			Help:    "Durable write latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workout_recoveries_total",
			Help: "Recovery runs by how the session was resolved",
		}, []string{"source"}),
		restTimersStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "workout_rest_timers_started_total",
			Help: "Rest timers started after a completed set",
		}),
		sessionsFinished: f.NewCounter(prometheus.CounterOpts{
			Name: "workout_sessions_finished_total",
			Help: "Sessions confirmed as finished",
		}),
	}
}

func (m *Metrics) CommandHandled(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) WriteObserved(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.writeDuration.Observe(took.Seconds())
	if err != nil {
		m.persistenceFailures.WithLabelValues(operation).Inc()
	}
}

// Recovered counts a recovery run. source is handle, scan or none.
func (m *Metrics) Recovered(source string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(source).Inc()
}

func (m *Metrics) RestStarted() {
	if m == nil {
		return
	}
	m.restTimersStarted.Inc()
}

func (m *Metrics) SessionFinished() {
	if m == nil {
		return
	}
	m.sessionsFinished.Inc()
}
