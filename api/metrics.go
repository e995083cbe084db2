package api

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soroboxing/gymgate/auth"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const AlertLoginFailureSpike AlertType = "login_failure_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// Session check outcomes, used as the "result" label.
const (
	resultOK        = "ok"
	resultNoSession = "no_session"
	resultInvalid   = "invalid"
	resultExpired   = "expired"
	resultError     = "error"
)

// authMetrics exports auth counters to Prometheus and watches a sliding
// window of login failures for spikes.
type authMetrics struct {
	events        *prometheus.CounterVec
	sessionChecks *prometheus.CounterVec

	mu             sync.Mutex
	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int
	alertFn        AlertFunc
	now            func() time.Time
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

func newAuthMetrics(reg prometheus.Registerer, alertFn AlertFunc) *authMetrics {
	m := &authMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymgate",
			Name:      "auth_events_total",
			Help:      "Authentication events by type.",
		}, []string{"event"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymgate",
			Name:      "session_checks_total",
			Help:      "Session cookie checks by result.",
		}, []string{"result"}),
		loginWindow:    defaultLoginFailureWindow,
		loginThreshold: defaultLoginFailureThreshold,
		alertFn:        alertFn,
		now:            time.Now,
	}
	m.events = registerCounterVec(reg, m.events)
	m.sessionChecks = registerCounterVec(reg, m.sessionChecks)
	return m
}

// registerCounterVec registers c, reusing an identical collector that is
// already registered so two API instances can share one registry.
func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// recordEvent counts an auth event and updates the spike window.
func (m *authMetrics) recordEvent(event AuthEvent) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(event)).Inc()
	if event == EventLoginFailure && m.alertFn != nil {
		m.recordLoginFailure()
	}
}

// recordResolve counts the outcome of one session check.
func (m *authMetrics) recordResolve(err error) {
	if m == nil {
		return
	}
	m.sessionChecks.WithLabelValues(resolveResult(err)).Inc()
}

func resolveResult(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, auth.ErrNoSession):
		return resultNoSession
	case errors.Is(err, auth.ErrSessionExpired):
		return resultExpired
	case errors.Is(err, auth.ErrSessionInvalid):
		return resultInvalid
	default:
		return resultError
	}
}

func (m *authMetrics) recordLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.loginFailures = append(m.loginFailures, now)
	m.loginFailures = trimWindow(m.loginFailures, now, m.loginWindow)

	if len(m.loginFailures) >= m.loginThreshold {
		m.alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "login failure rate exceeds threshold",
			Count:     len(m.loginFailures),
			Threshold: m.loginThreshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		m.loginFailures = m.loginFailures[:0]
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
