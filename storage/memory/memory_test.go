package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroboxing/gymgate/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	s := NewStore()
	storagetest.RunMemberStore(t, s)
	storagetest.RunSessionStore(t, s)
	storagetest.RunSecretRotator(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	m := storagetest.NewMember("12345678A")
	require.NoError(t, s.CreateMember(ctx, m))
	sess := storagetest.NewSession(m.ID, time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.RevokeSession(ctx, sess.TokenDigest, time.Now()))

	got, err := s.GetSessionByDigest(ctx, sess.TokenDigest)
	require.NoError(t, err)
	*got.RevokedAt = time.Time{}

	again, err := s.GetSessionByDigest(ctx, sess.TokenDigest)
	require.NoError(t, err)
	assert.False(t, again.RevokedAt.IsZero(), "store must not hand out its internal pointers")
}
