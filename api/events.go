package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuthEvent identifies the type of security-relevant action being logged.
type AuthEvent string

const (
	EventLoginSuccess      AuthEvent = "login_success"
	EventLoginFailure      AuthEvent = "login_failure"
	EventLogout            AuthEvent = "logout"
	EventMemberCreated     AuthEvent = "member_created"
	EventSecretReset       AuthEvent = "secret_reset"
	EventMemberDeactivated AuthEvent = "member_deactivated"
	EventMemberReactivated AuthEvent = "member_reactivated"
	EventSessionsRevoked   AuthEvent = "sessions_revoked"
	EventStoreFailure      AuthEvent = "store_failure"
)

// eventLogger wraps slog.Logger for structured auth event logging. Secrets
// and tokens never reach it; members are identified by ID.
type eventLogger struct {
	logger  *slog.Logger
	metrics *authMetrics
}

func newEventLogger(logger *slog.Logger, metrics *authMetrics) *eventLogger {
	return &eventLogger{
		logger:  logger.With("component", "auth_events"),
		metrics: metrics,
	}
}

func (el *eventLogger) log(event AuthEvent, r *http.Request, attrs ...slog.Attr) {
	level := slog.LevelInfo
	if event == EventStoreFailure {
		level = slog.LevelError
	}
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	el.logger.LogAttrs(r.Context(), level, "auth event", baseAttrs...)
	el.metrics.recordEvent(event)
}

// logEvent is a convenience for events about one member.
func (el *eventLogger) logEvent(event AuthEvent, r *http.Request, memberID string, extra ...slog.Attr) {
	attrs := []slog.Attr{slog.String("member_id", memberID)}
	attrs = append(attrs, extra...)
	el.log(event, r, attrs...)
}

func (el *eventLogger) logFailure(event AuthEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{slog.String("reason", reason)}
	attrs = append(attrs, extra...)
	el.log(event, r, attrs...)
}
