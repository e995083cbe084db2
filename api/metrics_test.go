package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroboxing/gymgate/auth"
)

func newTestMetrics(t *testing.T, alertFn AlertFunc) (*authMetrics, *time.Time) {
	t.Helper()
	m := newAuthMetrics(prometheus.NewRegistry(), alertFn)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestLoginFailureSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	m, _ := newTestMetrics(t, func(e AlertEvent) { alerts = append(alerts, e) })
	m.loginThreshold = 5

	for i := 0; i < 4; i++ {
		m.recordEvent(EventLoginFailure)
	}
	assert.Empty(t, alerts, "no alert below threshold")

	m.recordEvent(EventLoginFailure)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	assert.Equal(t, 5, alerts[0].Threshold)
}

func TestLoginFailureWindowExpiry(t *testing.T) {
	var alerts []AlertEvent
	m, now := newTestMetrics(t, func(e AlertEvent) { alerts = append(alerts, e) })
	m.loginThreshold = 5

	for i := 0; i < 4; i++ {
		m.recordEvent(EventLoginFailure)
	}
	*now = now.Add(2 * defaultLoginFailureWindow)

	m.recordEvent(EventLoginFailure)
	assert.Empty(t, alerts, "old failures should not count after window expiry")
}

func TestLoginFailureResetAfterAlert(t *testing.T) {
	var alerts []AlertEvent
	m, _ := newTestMetrics(t, func(e AlertEvent) { alerts = append(alerts, e) })
	m.loginThreshold = 3

	for i := 0; i < 3; i++ {
		m.recordEvent(EventLoginFailure)
	}
	require.Len(t, alerts, 1)

	for i := 0; i < 2; i++ {
		m.recordEvent(EventLoginFailure)
	}
	assert.Len(t, alerts, 1, "no second alert yet")

	m.recordEvent(EventLoginFailure)
	assert.Len(t, alerts, 2)
}

func TestMetricsWithoutAlertFunc(t *testing.T) {
	m, _ := newTestMetrics(t, nil)
	for i := 0; i < defaultLoginFailureThreshold+1; i++ {
		m.recordEvent(EventLoginFailure)
	}
	assert.InDelta(t, float64(defaultLoginFailureThreshold+1),
		testutil.ToFloat64(m.events.WithLabelValues(string(EventLoginFailure))), 0)
	assert.Empty(t, m.loginFailures, "window is not tracked without a callback")
}

func TestMetricsNilCollector(t *testing.T) {
	var m *authMetrics
	m.recordEvent(EventLoginFailure)
	m.recordResolve(nil)
}

func TestEventCounters(t *testing.T) {
	m, _ := newTestMetrics(t, nil)
	m.recordEvent(EventLoginSuccess)
	m.recordEvent(EventLoginSuccess)
	m.recordEvent(EventLogout)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(string(EventLoginSuccess))), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(string(EventLogout))), 0)
}

func TestSessionCheckResults(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, resultOK},
		{auth.ErrNoSession, resultNoSession},
		{auth.ErrSessionInvalid, resultInvalid},
		{auth.ErrSessionExpired, resultExpired},
		{fmt.Errorf("%w: boom", auth.ErrStoreFailure), resultError},
	}
	m, _ := newTestMetrics(t, nil)
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveResult(tt.err))
		m.recordResolve(tt.err)
	}
	for _, result := range []string{resultOK, resultNoSession, resultInvalid, resultExpired, resultError} {
		assert.InDelta(t, 1.0, testutil.ToFloat64(m.sessionChecks.WithLabelValues(result)), 0, result)
	}
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newAuthMetrics(reg, nil)
	second := newAuthMetrics(reg, nil)

	first.recordEvent(EventLogout)
	second.recordEvent(EventLogout)
	assert.InDelta(t, 2.0, testutil.ToFloat64(first.events.WithLabelValues(string(EventLogout))), 0)
}
