// Package redis implements storage.SessionStore on top of Redis. Members stay
// in one of the durable backends; only sessions move here when configured.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

const (
	defaultPrefix    = "gymgate:"
	defaultRetention = 24 * time.Hour
	maxWatchRetries  = 5
)

// SessionStore keeps each session as a JSON string keyed by token digest,
// plus a per-member set of digests. Keys expire a retention period after
// the session itself so that expired tokens are still reported as expired
// for a while.
type SessionStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

var _ storage.SessionStore = (*SessionStore)(nil)

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix sets the key prefix. Defaults to "gymgate:".
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) { s.prefix = prefix }
}

// WithRetention sets how long a session key outlives its expiry.
func WithRetention(d time.Duration) Option {
	return func(s *SessionStore) { s.retention = d }
}

// NewSessionStore returns a SessionStore using client.
func NewSessionStore(client *redis.Client, opts ...Option) *SessionStore {
	s := &SessionStore{client: client, prefix: defaultPrefix, retention: defaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) sessionKey(digest string) string {
	return s.prefix + "session:" + digest
}

func (s *SessionStore) memberKey(memberID string) string {
	return s.prefix + "member_sessions:" + memberID
}

func (s *SessionStore) ttl(sess member.Session) time.Duration {
	d := time.Until(sess.ExpiresAt) + s.retention
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (s *SessionStore) CreateSession(ctx context.Context, sess member.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.sessionKey(sess.TokenDigest), data, s.ttl(sess)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: %w", storage.ErrConflict)
	}
	memberKey := s.memberKey(sess.MemberID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, memberKey, sess.TokenDigest)
		pipe.ExpireGT(ctx, memberKey, s.ttl(sess))
		return nil
	})
	if err != nil {
		return err
	}
	// ExpireGT is a no-op on a key without a TTL, so a fresh set needs one.
	return s.client.ExpireNX(ctx, memberKey, s.ttl(sess)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) get(ctx context.Context, c getter, digest string) (*member.Session, error) {
	data, err := c.Get(ctx, s.sessionKey(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sess member.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) GetSessionByDigest(ctx context.Context, digest string) (*member.Session, error) {
	return s.get(ctx, s.client, digest)
}

func (s *SessionStore) ListSessions(ctx context.Context, memberID string) ([]member.Session, error) {
	digests, err := s.client.SMembers(ctx, s.memberKey(memberID)).Result()
	if err != nil {
		return nil, err
	}
	out := []member.Session{}
	for _, d := range digests {
		sess, err := s.get(ctx, s.client, d)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

// revoke sets revoked_at under WATCH so that concurrent revocations keep the
// first timestamp. It reports whether this call changed the session.
func (s *SessionStore) revoke(ctx context.Context, digest string, at time.Time) (bool, error) {
	key := s.sessionKey(digest)
	for i := 0; i < maxWatchRetries; i++ {
		changed := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			sess, err := s.get(ctx, tx, digest)
			if err != nil {
				return err
			}
			if sess.RevokedAt != nil {
				return nil
			}
			sess.RevokedAt = &at
			data, err := json.Marshal(sess)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
				return nil
			})
			changed = err == nil
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return changed, err
	}
	return false, fmt.Errorf("revoking session: too much contention")
}

func (s *SessionStore) RevokeSession(ctx context.Context, digest string, at time.Time) error {
	_, err := s.revoke(ctx, digest, at)
	return err
}

func (s *SessionStore) RevokeMemberSessions(ctx context.Context, memberID string, at time.Time) (int, error) {
	memberKey := s.memberKey(memberID)
	digests, err := s.client.SMembers(ctx, memberKey).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range digests {
		changed, err := s.revoke(ctx, d, at)
		if errors.Is(err, storage.ErrNotFound) {
			// Session key aged out; drop it from the index.
			s.client.SRem(ctx, memberKey, d)
			continue
		}
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}
