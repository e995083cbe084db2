package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

// Login verifies identifier and secret and issues a new session.
//
// An unknown identifier and a wrong secret both return ErrInvalidCredentials;
// the distinction is only logged. A stored hash in no known format also
// rejects the login.
func (s *Service) Login(ctx context.Context, identifier, secret string) (_ *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	identifier = member.NormalizeIdentifier(identifier)
	secret = member.NormalizeSecret(secret)
	if identifier == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	m, err := s.members.GetMemberByIdentifier(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.InfoContext(ctx, "login rejected", "reason", "unknown identifier", "identifier", identifier)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "get member by identifier", err)
	}
	span.SetAttributes(attribute.String("member.id", m.ID))

	if !m.Active() {
		s.logger.InfoContext(ctx, "login rejected", "reason", "inactive", "member_id", m.ID)
		return nil, ErrAccountInactive
	}

	ok, err := VerifySecret(secret, m.SecretHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "login rejected", "reason", "malformed secret hash", "member_id", m.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.logger.InfoContext(ctx, "login rejected", "reason", "secret mismatch", "member_id", m.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	now := s.clock()
	sess := member.Session{
		ID:          uuid.NewString(),
		MemberID:    m.ID,
		TokenDigest: HashToken(token),
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, s.storeFailure(ctx, "create session", err)
	}

	if err := s.members.TouchLastLogin(ctx, m.ID, now); err != nil {
		s.logger.WarnContext(ctx, "updating last login failed", "member_id", m.ID, "error", err)
	} else {
		m.LastLoginAt = &now
	}

	return &LoginResult{Token: token, Session: sess, Member: *m}, nil
}
