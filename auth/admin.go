package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

// NewMember describes a member to provision. Role defaults to member.
type NewMember struct {
	Identifier string
	Role       member.Role
	FirstName  string
	LastName   string
	Email      string
	Phone      string
}

// ProvisionMember creates a member with a freshly generated secret. The
// plaintext secret is returned once and never stored.
func (s *Service) ProvisionMember(ctx context.Context, nm NewMember) (_ *member.Member, _ string, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.provision_member")
	defer func() { endSpan(span, err) }()

	secret, err := GenerateSecret(s.secretLength)
	if err != nil {
		return nil, "", err
	}
	m, err := s.createMember(ctx, nm, secret)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(attribute.String("member.id", m.ID))
	return m, secret, nil
}

func (s *Service) createMember(ctx context.Context, nm NewMember, secret string) (*member.Member, error) {
	identifier := member.NormalizeIdentifier(nm.Identifier)
	if err := member.ValidateIdentifier(identifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	if nm.Role == "" {
		nm.Role = member.RoleMember
	}
	now := s.clock()
	m := member.Member{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Role:       nm.Role,
		FirstName:  nm.FirstName,
		LastName:   nm.LastName,
		Email:      nm.Email,
		Phone:      nm.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := member.ValidateRole(m.Role); err != nil {
		return nil, err
	}
	if err := member.ValidateProfile(m); err != nil {
		return nil, err
	}

	hash, err := HashSecret(secret, s.kdfParams)
	if err != nil {
		return nil, err
	}
	m.SecretHash = hash

	err = s.members.CreateMember(ctx, m)
	if errors.Is(err, storage.ErrConflict) {
		return nil, ErrMemberExists
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "create member", err)
	}
	s.logger.InfoContext(ctx, "member created", "member_id", m.ID, "role", m.Role)
	return &m, nil
}

// getMember loads a member, mapping ErrNotFound to ErrMemberNotFound.
func (s *Service) getMember(ctx context.Context, id string) (*member.Member, error) {
	m, err := s.members.GetMemberByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "get member", err)
	}
	return m, nil
}

// ResetSecret generates a new secret for the member and revokes all of its
// sessions. With a transactional backend both happen at once; otherwise the
// sessions are revoked before the hash is replaced, so a failure in between
// leaves the old secret valid but no session alive.
func (s *Service) ResetSecret(ctx context.Context, memberID string) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.reset_secret")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("member.id", memberID))

	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return "", err
	}
	if !m.Active() {
		return "", ErrAccountInactive
	}

	// Reset PINs use the same configured length as new members.
	secret, err := GenerateSecret(s.secretLength)
	if err != nil {
		return "", err
	}
	hash, err := HashSecret(secret, s.kdfParams)
	if err != nil {
		return "", err
	}

	now := s.clock()
	var revoked int
	if s.rotator != nil {
		revoked, err = s.rotator.RotateSecret(ctx, memberID, hash, now)
		if err != nil {
			return "", s.storeFailure(ctx, "rotate secret", err)
		}
	} else {
		revoked, err = s.sessions.RevokeMemberSessions(ctx, memberID, now)
		if err != nil {
			return "", s.storeFailure(ctx, "revoke member sessions", err)
		}
		if err := s.members.UpdateSecretHash(ctx, memberID, hash, now); err != nil {
			return "", s.storeFailure(ctx, "update secret hash", err)
		}
	}
	span.SetAttributes(attribute.Int("sessions.revoked", revoked))
	s.logger.InfoContext(ctx, "secret reset", "member_id", memberID, "sessions_revoked", revoked)
	return secret, nil
}

// DeactivateMember soft-deletes the member and revokes its sessions. The
// soft-delete alone already makes Resolve reject them.
func (s *Service) DeactivateMember(ctx context.Context, memberID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.deactivate_member")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("member.id", memberID))

	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	if !m.Active() {
		return ErrAlreadyInactive
	}

	now := s.clock()
	if err := s.members.SetDeletedAt(ctx, memberID, &now); err != nil {
		return s.storeFailure(ctx, "set deleted at", err)
	}
	n, err := s.sessions.RevokeMemberSessions(ctx, memberID, now)
	if err != nil {
		return s.storeFailure(ctx, "revoke member sessions", err)
	}
	s.logger.InfoContext(ctx, "member deactivated", "member_id", memberID, "sessions_revoked", n)
	return nil
}

// ReactivateMember clears the soft-delete marker. Sessions revoked on
// deactivation stay revoked.
func (s *Service) ReactivateMember(ctx context.Context, memberID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.reactivate_member")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("member.id", memberID))

	m, err := s.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	if m.Active() {
		return ErrAlreadyActive
	}
	if err := s.members.SetDeletedAt(ctx, memberID, nil); err != nil {
		return s.storeFailure(ctx, "set deleted at", err)
	}
	s.logger.InfoContext(ctx, "member reactivated", "member_id", memberID)
	return nil
}

// GetMember returns the member with the given ID, active or not.
func (s *Service) GetMember(ctx context.Context, memberID string) (*member.Member, error) {
	return s.getMember(ctx, memberID)
}

// ListMembers returns members sorted by identifier. Soft-deleted members are
// included only when includeDeleted is set.
func (s *Service) ListMembers(ctx context.Context, includeDeleted bool) ([]member.Member, error) {
	all, err := s.members.ListMembers(ctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list members", err)
	}
	if includeDeleted {
		return all, nil
	}
	out := make([]member.Member, 0, len(all))
	for _, m := range all {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListSessions returns the member's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, memberID string) ([]member.Session, error) {
	if _, err := s.getMember(ctx, memberID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessions(ctx, memberID)
	if err != nil {
		return nil, s.storeFailure(ctx, "list sessions", err)
	}
	return sessions, nil
}
