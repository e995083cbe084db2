// Package memory provides a thread-safe in-memory implementation of storage.Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu sync.RWMutex

	members     map[string]member.Member  // by ID
	identifiers map[string]string         // identifier -> member ID
	sessions    map[string]member.Session // by token digest
	byMember    map[string][]string       // member ID -> token digests
}

var (
	_ storage.Store         = (*Store)(nil)
	_ storage.SecretRotator = (*Store)(nil)
)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{
		members:     make(map[string]member.Member),
		identifiers: make(map[string]string),
		sessions:    make(map[string]member.Session),
		byMember:    make(map[string][]string),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMember(m member.Member) member.Member {
	m.DeletedAt = cloneTime(m.DeletedAt)
	m.LastLoginAt = cloneTime(m.LastLoginAt)
	return m
}

func cloneSession(s member.Session) member.Session {
	s.RevokedAt = cloneTime(s.RevokedAt)
	return s
}

func (s *Store) CreateMember(_ context.Context, m member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.ID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.identifiers[m.Identifier]; ok {
		return storage.ErrConflict
	}
	s.members[m.ID] = cloneMember(m)
	s.identifiers[m.Identifier] = m.ID
	return nil
}

func (s *Store) GetMemberByID(_ context.Context, id string) (*member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m = cloneMember(m)
	return &m, nil
}

func (s *Store) GetMemberByIdentifier(_ context.Context, identifier string) (*member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identifiers[identifier]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m := cloneMember(s.members[id])
	return &m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]member.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, cloneMember(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier < out[j].Identifier
	})
	return out, nil
}

func (s *Store) UpdateSecretHash(_ context.Context, id, secretHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSecretHashLocked(id, secretHash, at)
}

func (s *Store) updateSecretHashLocked(id, secretHash string, at time.Time) error {
	m, ok := s.members[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.SecretHash = secretHash
	m.UpdatedAt = at
	s.members[id] = m
	return nil
}

func (s *Store) SetDeletedAt(_ context.Context, id string, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.DeletedAt = cloneTime(at)
	if at != nil {
		m.UpdatedAt = *at
	} else {
		m.UpdatedAt = time.Now().UTC()
	}
	s.members[id] = m
	return nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.LastLoginAt = &at
	s.members[id] = m
	return nil
}

func (s *Store) CreateSession(_ context.Context, sess member.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.TokenDigest]; ok {
		return storage.ErrConflict
	}
	s.sessions[sess.TokenDigest] = cloneSession(sess)
	s.byMember[sess.MemberID] = append(s.byMember[sess.MemberID], sess.TokenDigest)
	return nil
}

func (s *Store) GetSessionByDigest(_ context.Context, digest string) (*member.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[digest]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sess = cloneSession(sess)
	return &sess, nil
}

func (s *Store) ListSessions(_ context.Context, memberID string) ([]member.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	digests := s.byMember[memberID]
	out := make([]member.Session, 0, len(digests))
	for _, d := range digests {
		out = append(out, cloneSession(s.sessions[d]))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (s *Store) RevokeSession(_ context.Context, digest string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[digest]
	if !ok {
		return storage.ErrNotFound
	}
	if sess.RevokedAt == nil {
		sess.RevokedAt = &at
		s.sessions[digest] = sess
	}
	return nil
}

func (s *Store) RevokeMemberSessions(_ context.Context, memberID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeMemberSessionsLocked(memberID, at), nil
}

func (s *Store) revokeMemberSessionsLocked(memberID string, at time.Time) int {
	n := 0
	for _, d := range s.byMember[memberID] {
		sess := s.sessions[d]
		if sess.RevokedAt != nil {
			continue
		}
		revokedAt := at
		sess.RevokedAt = &revokedAt
		s.sessions[d] = sess
		n++
	}
	return n
}

// RotateSecret swaps the secret hash and revokes the member's sessions under
// a single lock.
func (s *Store) RotateSecret(_ context.Context, memberID, secretHash string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateSecretHashLocked(memberID, secretHash, at); err != nil {
		return 0, err
	}
	return s.revokeMemberSessionsLocked(memberID, at), nil
}
