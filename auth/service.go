// Package auth issues, resolves and revokes member sessions and administers
// member credentials. HTTP concerns live in package api; persistence in
// package storage.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soroboxing/gymgate/internal/util"
	"github.com/soroboxing/gymgate/storage"
)

// DefaultSessionTTL is the lifetime of a session from issuance.
const DefaultSessionTTL = 7 * 24 * time.Hour

const tracerName = "github.com/soroboxing/gymgate/auth"

// Service is the single owner of session semantics. It holds no mutable
// state of its own; every request goes to the stores.
type Service struct {
	members  storage.MemberStore
	sessions storage.SessionStore
	rotator  storage.SecretRotator

	ttl          time.Duration
	secretLength int
	kdfParams    util.Argon2idParams
	now          func() time.Time
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the session lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithSecretLength sets the number of digits in generated PINs (4 to 6).
func WithSecretLength(n int) Option {
	return func(s *Service) { s.secretLength = n }
}

// WithArgon2idParams sets the cost parameters for newly hashed secrets.
func WithArgon2idParams(p util.Argon2idParams) Option {
	return func(s *Service) { s.kdfParams = p }
}

// New returns a Service. When members and sessions are the same backend and
// it implements storage.SecretRotator, secret resets run in one transaction.
func New(members storage.MemberStore, sessions storage.SessionStore, opts ...Option) *Service {
	s := &Service{
		members:      members,
		sessions:     sessions,
		ttl:          DefaultSessionTTL,
		secretLength: DefaultSecretLength,
		kdfParams:    util.DefaultArgon2idParams(),
		now:          time.Now,
		logger:       slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		tracer:       otel.Tracer(tracerName),
	}
	if r, ok := members.(storage.SecretRotator); ok && sameBackend(members, sessions) {
		s.rotator = r
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth")
	return s
}

// sameBackend reports whether both stores are the same value. Values of
// non-comparable dynamic types never match.
func sameBackend(members storage.MemberStore, sessions storage.SessionStore) bool {
	ss, ok := sessions.(storage.MemberStore)
	if !ok || !reflect.TypeOf(ss).Comparable() {
		return false
	}
	return ss == members
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.clock()
}

// storeFailure logs the backend error and wraps it in ErrStoreFailure.
func (s *Service) storeFailure(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// endSpan records err on span. Store failures mark the span as errored;
// ordinary auth rejections only add an event.
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	if errors.Is(err, ErrStoreFailure) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return
	}
	span.AddEvent("rejected", trace.WithAttributes(rejectionAttr(err)))
}

func rejectionAttr(err error) attribute.KeyValue {
	return attribute.String("auth.reason", err.Error())
}
