package auth

import (
	"context"
	"errors"

	"github.com/soroboxing/gymgate/storage"
)

// Resolve maps a raw bearer token to the identity of a live session.
// Expiry is fixed at issuance; resolving never extends it.
func (s *Service) Resolve(ctx context.Context, token string) (_ Identity, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.resolve")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return Identity{}, ErrNoSession
	}

	sess, err := s.sessions.GetSessionByDigest(ctx, HashToken(token))
	if errors.Is(err, storage.ErrNotFound) {
		return Identity{}, ErrSessionInvalid
	}
	if err != nil {
		return Identity{}, s.storeFailure(ctx, "get session", err)
	}
	if sess.Revoked() {
		return Identity{}, ErrSessionInvalid
	}
	if sess.Expired(s.clock()) {
		return Identity{}, ErrSessionExpired
	}

	m, err := s.members.GetMemberByID(ctx, sess.MemberID)
	if errors.Is(err, storage.ErrNotFound) {
		return Identity{}, ErrSessionInvalid
	}
	if err != nil {
		return Identity{}, s.storeFailure(ctx, "get member", err)
	}
	if !m.Active() {
		return Identity{}, ErrSessionInvalid
	}

	return Identity{
		MemberID:   m.ID,
		Identifier: m.Identifier,
		Role:       m.Role,
		SessionID:  sess.ID,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}
