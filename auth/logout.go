package auth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/soroboxing/gymgate/storage"
)

// Logout revokes the session behind token. Unknown, empty and already
// revoked tokens are not errors.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return nil
	}
	err = s.sessions.RevokeSession(ctx, HashToken(token), s.clock())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return s.storeFailure(ctx, "revoke session", err)
	}
	return nil
}

// RevokeAllSessions revokes every live session of the member and returns how
// many were revoked.
func (s *Service) RevokeAllSessions(ctx context.Context, memberID string) (_ int, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.revoke_all_sessions")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("member.id", memberID))

	n, err := s.sessions.RevokeMemberSessions(ctx, memberID, s.clock())
	if err != nil {
		return 0, s.storeFailure(ctx, "revoke member sessions", err)
	}
	span.SetAttributes(attribute.Int("sessions.revoked", n))
	return n, nil
}
