package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CommandHandled("pause", "ok")
	m.CommandHandled("pause", "ok")
	m.CommandHandled("complete_set", "persistence_failure")
	m.WriteObserved("complete set", 3*time.Millisecond, errors.New("disk full"))
	m.WriteObserved("pause session", time.Millisecond, nil)
	m.Recovered("handle")
	m.RestStarted()
	m.SessionFinished()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("pause", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("complete_set", "persistence_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceFailures.WithLabelValues("complete set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recoveries.WithLabelValues("handle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restTimersStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsFinished))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CommandHandled("pause", "ok")
		m.WriteObserved("pause session", time.Millisecond, nil)
		m.Recovered("scan")
		m.RestStarted()
		m.SessionFinished()
	})
}
