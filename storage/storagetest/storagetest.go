// Package storagetest holds the conformance suite every storage backend runs.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

// base is truncated to microseconds so that backends with coarser time
// columns (Postgres timestamptz) compare equal.
var base = time.Now().UTC().Truncate(time.Microsecond)

// NewMember returns a member with a fresh ID and the given identifier.
func NewMember(identifier string) member.Member {
	return member.Member{
		ID:         uuid.NewString(),
		Identifier: identifier,
		SecretHash: "$argon2id$placeholder",
		Role:       member.RoleMember,
		FirstName:  "Test",
		LastName:   "Member",
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

// NewSession returns a live session for memberID with a unique digest.
func NewSession(memberID string, ttl time.Duration) member.Session {
	return member.Session{
		ID:          uuid.NewString(),
		MemberID:    memberID,
		TokenDigest: uuid.NewString(),
		IssuedAt:    base,
		ExpiresAt:   base.Add(ttl),
	}
}

func uniqueIdentifier() string {
	return "ID" + uuid.NewString()[:8]
}

// RunMemberStore exercises the MemberStore contract.
func RunMemberStore(t *testing.T, s storage.MemberStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		m := NewMember(uniqueIdentifier())
		m.Email = "test@example.com"
		require.NoError(t, s.CreateMember(ctx, m))

		got, err := s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Identifier, got.Identifier)
		assert.Equal(t, m.SecretHash, got.SecretHash)
		assert.Equal(t, m.Role, got.Role)
		assert.Equal(t, "test@example.com", got.Email)
		assert.Nil(t, got.DeletedAt)

		byIdent, err := s.GetMemberByIdentifier(ctx, m.Identifier)
		require.NoError(t, err)
		assert.Equal(t, m.ID, byIdent.ID)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.GetMemberByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.GetMemberByIdentifier(ctx, "NOPE"+uuid.NewString()[:6])
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("MalformedID", func(t *testing.T) {
		_, err := s.GetMemberByID(ctx, "abc")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.UpdateSecretHash(ctx, "abc", "x", base), storage.ErrNotFound)
		at := base
		assert.ErrorIs(t, s.SetDeletedAt(ctx, "abc", &at), storage.ErrNotFound)
		assert.ErrorIs(t, s.TouchLastLogin(ctx, "abc", base), storage.ErrNotFound)
	})

	t.Run("DuplicateIdentifier", func(t *testing.T) {
		ident := uniqueIdentifier()
		require.NoError(t, s.CreateMember(ctx, NewMember(ident)))
		err := s.CreateMember(ctx, NewMember(ident))
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("UpdateSecretHash", func(t *testing.T) {
		m := NewMember(uniqueIdentifier())
		require.NoError(t, s.CreateMember(ctx, m))
		require.NoError(t, s.UpdateSecretHash(ctx, m.ID, "$argon2id$new", base.Add(time.Minute)))

		got, err := s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", got.SecretHash)

		err = s.UpdateSecretHash(ctx, uuid.NewString(), "x", base)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SoftDeleteAndReactivate", func(t *testing.T) {
		m := NewMember(uniqueIdentifier())
		require.NoError(t, s.CreateMember(ctx, m))

		at := base.Add(time.Hour)
		require.NoError(t, s.SetDeletedAt(ctx, m.ID, &at))
		got, err := s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got.DeletedAt)
		assert.True(t, at.Equal(*got.DeletedAt))
		assert.False(t, got.Active())

		require.NoError(t, s.SetDeletedAt(ctx, m.ID, nil))
		got, err = s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, got.Active())

		assert.ErrorIs(t, s.SetDeletedAt(ctx, uuid.NewString(), &at), storage.ErrNotFound)
	})

	t.Run("TouchLastLogin", func(t *testing.T) {
		m := NewMember(uniqueIdentifier())
		require.NoError(t, s.CreateMember(ctx, m))
		at := base.Add(2 * time.Hour)
		require.NoError(t, s.TouchLastLogin(ctx, m.ID, at))

		got, err := s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, at.Equal(*got.LastLoginAt))
	})

	t.Run("ListMembersSorted", func(t *testing.T) {
		a := NewMember("AAA" + uuid.NewString()[:6])
		z := NewMember("ZZZ" + uuid.NewString()[:6])
		require.NoError(t, s.CreateMember(ctx, z))
		require.NoError(t, s.CreateMember(ctx, a))

		list, err := s.ListMembers(ctx)
		require.NoError(t, err)
		idxA, idxZ := -1, -1
		for i, m := range list {
			switch m.ID {
			case a.ID:
				idxA = i
			case z.ID:
				idxZ = i
			}
		}
		require.NotEqual(t, -1, idxA)
		require.NotEqual(t, -1, idxZ)
		assert.Less(t, idxA, idxZ)
	})
}

// RunSessionStore exercises the SessionStore contract.
func RunSessionStore(t *testing.T, s storage.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		sess := NewSession(uuid.NewString(), time.Hour)
		require.NoError(t, s.CreateSession(ctx, sess))

		got, err := s.GetSessionByDigest(ctx, sess.TokenDigest)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, sess.MemberID, got.MemberID)
		assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))
		assert.Nil(t, got.RevokedAt)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.GetSessionByDigest(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DuplicateDigest", func(t *testing.T) {
		sess := NewSession(uuid.NewString(), time.Hour)
		require.NoError(t, s.CreateSession(ctx, sess))
		dup := NewSession(sess.MemberID, time.Hour)
		dup.TokenDigest = sess.TokenDigest
		assert.ErrorIs(t, s.CreateSession(ctx, dup), storage.ErrConflict)
	})

	t.Run("RevokeIsMonotonic", func(t *testing.T) {
		sess := NewSession(uuid.NewString(), time.Hour)
		require.NoError(t, s.CreateSession(ctx, sess))

		first := base.Add(time.Minute)
		require.NoError(t, s.RevokeSession(ctx, sess.TokenDigest, first))
		require.NoError(t, s.RevokeSession(ctx, sess.TokenDigest, first.Add(time.Minute)))

		got, err := s.GetSessionByDigest(ctx, sess.TokenDigest)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, first.Equal(*got.RevokedAt), "second revoke must not move revoked_at")
	})

	t.Run("RevokeMissing", func(t *testing.T) {
		assert.ErrorIs(t, s.RevokeSession(ctx, uuid.NewString(), base), storage.ErrNotFound)
	})

	t.Run("RevokeMemberSessions", func(t *testing.T) {
		memberID := uuid.NewString()
		other := NewSession(uuid.NewString(), time.Hour)
		require.NoError(t, s.CreateSession(ctx, other))

		var digests []string
		for i := 0; i < 3; i++ {
			sess := NewSession(memberID, time.Hour)
			sess.IssuedAt = base.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.CreateSession(ctx, sess))
			digests = append(digests, sess.TokenDigest)
		}
		require.NoError(t, s.RevokeSession(ctx, digests[0], base))

		n, err := s.RevokeMemberSessions(ctx, memberID, base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		list, err := s.ListSessions(ctx, memberID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for _, sess := range list {
			assert.True(t, sess.Revoked())
		}
		assert.Equal(t, digests[2], list[0].TokenDigest, "sessions are listed newest first")

		got, err := s.GetSessionByDigest(ctx, other.TokenDigest)
		require.NoError(t, err)
		assert.False(t, got.Revoked(), "other members' sessions are untouched")

		n, err = s.RevokeMemberSessions(ctx, memberID, base.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ListSessionsEmpty", func(t *testing.T) {
		list, err := s.ListSessions(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("MalformedMemberID", func(t *testing.T) {
		list, err := s.ListSessions(ctx, "abc")
		require.NoError(t, err)
		assert.Empty(t, list)
		n, err := s.RevokeMemberSessions(ctx, "abc", base)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// RunSecretRotator exercises the transactional secret rotation.
func RunSecretRotator(t *testing.T, s interface {
	storage.Store
	storage.SecretRotator
}) {
	t.Helper()
	ctx := context.Background()

	t.Run("RotateSecret", func(t *testing.T) {
		m := NewMember(uniqueIdentifier())
		require.NoError(t, s.CreateMember(ctx, m))
		for i := 0; i < 2; i++ {
			require.NoError(t, s.CreateSession(ctx, NewSession(m.ID, time.Hour)))
		}

		n, err := s.RotateSecret(ctx, m.ID, "$argon2id$rotated", base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.GetMemberByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$rotated", got.SecretHash)

		list, err := s.ListSessions(ctx, m.ID)
		require.NoError(t, err)
		for _, sess := range list {
			assert.True(t, sess.Revoked())
		}
	})

	t.Run("RotateSecretMissingMember", func(t *testing.T) {
		_, err := s.RotateSecret(ctx, uuid.NewString(), "x", base)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.RotateSecret(ctx, "abc", "x", base)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
