// Package storage provides the persistence abstraction for members and
// sessions. Backends live in the memory, bbolt, postgres and redis
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/soroboxing/gymgate/member"
)

var (
	// ErrNotFound is returned when a member or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key (identifier, token digest)
	// is already taken.
	ErrConflict = errors.New("conflict")
)

// MemberStore persists member records. Every mutation touches one row.
type MemberStore interface {
	CreateMember(ctx context.Context, m member.Member) error
	GetMemberByID(ctx context.Context, id string) (*member.Member, error)
	GetMemberByIdentifier(ctx context.Context, identifier string) (*member.Member, error)
	ListMembers(ctx context.Context) ([]member.Member, error)
	UpdateSecretHash(ctx context.Context, id, secretHash string, at time.Time) error
	// SetDeletedAt soft-deletes the member (non-nil at) or reactivates it (nil).
	SetDeletedAt(ctx context.Context, id string, at *time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionStore persists session records keyed by token digest.
type SessionStore interface {
	CreateSession(ctx context.Context, s member.Session) error
	GetSessionByDigest(ctx context.Context, digest string) (*member.Session, error)
	ListSessions(ctx context.Context, memberID string) ([]member.Session, error)
	// RevokeSession sets RevokedAt on the session if it is not already
	// revoked. It returns ErrNotFound when no session has that digest.
	RevokeSession(ctx context.Context, digest string, at time.Time) error
	// RevokeMemberSessions revokes every unrevoked session of the member
	// and returns how many were changed.
	RevokeMemberSessions(ctx context.Context, memberID string, at time.Time) (int, error)
}

// Store is a backend that holds both members and sessions.
type Store interface {
	MemberStore
	SessionStore
}

// SecretRotator is implemented by backends that can replace a member's
// secret hash and revoke all of the member's sessions in one transaction.
type SecretRotator interface {
	RotateSecret(ctx context.Context, memberID, secretHash string, at time.Time) (int, error)
}
