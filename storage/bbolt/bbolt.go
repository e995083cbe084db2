// Package bbolt provides a BBolt-backed storage.Store.
package bbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

var (
	bucketMembers        = []byte("members")
	bucketIdentifiers    = []byte("member_identifiers")
	bucketSessions       = []byte("sessions")
	bucketMemberSessions = []byte("member_sessions")
)

// Store implements storage.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var (
	_ storage.Store         = (*Store)(nil)
	_ storage.SecretRotator = (*Store)(nil)
)

// NewStore returns a Store backed by the given BBolt database, creating the
// buckets it needs.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMembers, bucketIdentifiers, bucketSessions, bucketMemberSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// memberSessionKey indexes a session under its member: "<memberID>:<digest>".
func memberSessionKey(memberID, digest string) []byte {
	return []byte(memberID + ":" + digest)
}

func putMember(tx *bbolt.Tx, m *member.Member) error {
	data, err := json.Marshal(storedMember(*m))
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMembers).Put([]byte(m.ID), data)
}

// storedMember carries the secret hash into the database; member.Member
// hides it from JSON.
type storedMember member.Member

func (m storedMember) MarshalJSON() ([]byte, error) {
	type plain member.Member
	return json.Marshal(struct {
		plain
		SecretHash string `json:"secret_hash"`
	}{plain(m), m.SecretHash})
}

func decodeMember(data []byte) (*member.Member, error) {
	var wrapped struct {
		member.Member
		SecretHash string `json:"secret_hash"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	m := wrapped.Member
	m.SecretHash = wrapped.SecretHash
	return &m, nil
}

func getSession(tx *bbolt.Tx, digest string) (*member.Session, error) {
	data := tx.Bucket(bucketSessions).Get([]byte(digest))
	if data == nil {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	var sess member.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func putSession(tx *bbolt.Tx, sess *member.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketSessions).Put([]byte(sess.TokenDigest), data)
}

func (s *Store) CreateMember(_ context.Context, m member.Member) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketIdentifiers)
		if tx.Bucket(bucketMembers).Get([]byte(m.ID)) != nil || idx.Get([]byte(m.Identifier)) != nil {
			return fmt.Errorf("member %s: %w", m.Identifier, storage.ErrConflict)
		}
		if err := idx.Put([]byte(m.Identifier), []byte(m.ID)); err != nil {
			return err
		}
		return putMember(tx, &m)
	})
}

func (s *Store) GetMemberByID(_ context.Context, id string) (*member.Member, error) {
	var m *member.Member
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		m, err = loadMember(tx, id)
		return err
	})
	return m, err
}

func (s *Store) GetMemberByIdentifier(_ context.Context, identifier string) (*member.Member, error) {
	var m *member.Member
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketIdentifiers).Get([]byte(identifier))
		if id == nil {
			return fmt.Errorf("member %s: %w", identifier, storage.ErrNotFound)
		}
		var err error
		m, err = loadMember(tx, string(id))
		return err
	})
	return m, err
}

func loadMember(tx *bbolt.Tx, id string) (*member.Member, error) {
	data := tx.Bucket(bucketMembers).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return decodeMember(data)
}

func (s *Store) ListMembers(_ context.Context) ([]member.Member, error) {
	var out []member.Member
	err := s.db.View(func(tx *bbolt.Tx) error {
		// The identifier index is ordered by key, which gives the sort for free.
		return tx.Bucket(bucketIdentifiers).ForEach(func(_, id []byte) error {
			m, err := loadMember(tx, string(id))
			if err != nil {
				return err
			}
			out = append(out, *m)
			return nil
		})
	})
	return out, err
}

// updateMember loads, mutates and stores one member inside a write transaction.
func updateMember(tx *bbolt.Tx, id string, fn func(m *member.Member)) error {
	m, err := loadMember(tx, id)
	if err != nil {
		return err
	}
	fn(m)
	return putMember(tx, m)
}

func (s *Store) UpdateSecretHash(_ context.Context, id, secretHash string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return updateMember(tx, id, func(m *member.Member) {
			m.SecretHash = secretHash
			m.UpdatedAt = at
		})
	})
}

func (s *Store) SetDeletedAt(_ context.Context, id string, at *time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return updateMember(tx, id, func(m *member.Member) {
			m.DeletedAt = at
			if at != nil {
				m.UpdatedAt = *at
			} else {
				m.UpdatedAt = time.Now().UTC()
			}
		})
	})
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return updateMember(tx, id, func(m *member.Member) {
			m.LastLoginAt = &at
		})
	})
}

func (s *Store) CreateSession(_ context.Context, sess member.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(sess.TokenDigest)) != nil {
			return fmt.Errorf("session: %w", storage.ErrConflict)
		}
		if err := tx.Bucket(bucketMemberSessions).Put(memberSessionKey(sess.MemberID, sess.TokenDigest), []byte(sess.ID)); err != nil {
			return err
		}
		return putSession(tx, &sess)
	})
}

func (s *Store) GetSessionByDigest(_ context.Context, digest string) (*member.Session, error) {
	var sess *member.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		sess, err = getSession(tx, digest)
		return err
	})
	return sess, err
}

// forEachMemberSession walks the member's session index.
func forEachMemberSession(tx *bbolt.Tx, memberID string, fn func(sess *member.Session) error) error {
	prefix := []byte(memberID + ":")
	c := tx.Bucket(bucketMemberSessions).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		sess, err := getSession(tx, string(k[len(prefix):]))
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListSessions(_ context.Context, memberID string) ([]member.Session, error) {
	out := []member.Session{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return forEachMemberSession(tx, memberID, func(sess *member.Session) error {
			out = append(out, *sess)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (s *Store) RevokeSession(_ context.Context, digest string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sess, err := getSession(tx, digest)
		if err != nil {
			return err
		}
		if sess.RevokedAt != nil {
			return nil
		}
		sess.RevokedAt = &at
		return putSession(tx, sess)
	})
}

func revokeMemberSessions(tx *bbolt.Tx, memberID string, at time.Time) (int, error) {
	var pending []*member.Session
	err := forEachMemberSession(tx, memberID, func(sess *member.Session) error {
		if sess.RevokedAt == nil {
			pending = append(pending, sess)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, sess := range pending {
		revokedAt := at
		sess.RevokedAt = &revokedAt
		if err := putSession(tx, sess); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func (s *Store) RevokeMemberSessions(_ context.Context, memberID string, at time.Time) (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		n, err = revokeMemberSessions(tx, memberID, at)
		return err
	})
	return n, err
}

// RotateSecret swaps the secret hash and revokes the member's sessions in one
// bbolt transaction.
func (s *Store) RotateSecret(_ context.Context, memberID, secretHash string, at time.Time) (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := updateMember(tx, memberID, func(m *member.Member) {
			m.SecretHash = secretHash
			m.UpdatedAt = at
		})
		if err != nil {
			return err
		}
		n, err = revokeMemberSessions(tx, memberID, at)
		return err
	})
	return n, err
}
