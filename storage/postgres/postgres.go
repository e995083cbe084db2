// Package postgres implements storage.Store backed by PostgreSQL.
//
// Members and sessions live in two tables. sessions.member_id carries no
// foreign key so that the session table can be exercised on its own, the
// same way the redis backend stores sessions without members.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soroboxing/gymgate/member"
	"github.com/soroboxing/gymgate/storage"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.Store         = (*Store)(nil)
	_ storage.SecretRotator = (*Store)(nil)
)

// NewStore returns a Store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// querier abstracts both *pgxpool.Pool and pgx.Tx for shared queries.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, storage.ErrConflict)
		case invalidTextRepresentation:
			return fmt.Errorf("%s: %w", pgErr.Message, storage.ErrNotFound)
		}
	}
	return err
}

// validID reports whether id can name a row. Member and session IDs are UUID
// columns, so anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

const memberColumns = `id, identifier, secret_hash, role, first_name, last_name, email, phone,
	created_at, updated_at, deleted_at, last_login_at`

func scanMember(row pgx.Row) (*member.Member, error) {
	var m member.Member
	err := row.Scan(&m.ID, &m.Identifier, &m.SecretHash, &m.Role, &m.FirstName, &m.LastName,
		&m.Email, &m.Phone, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt, &m.LastLoginAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (s *Store) CreateMember(ctx context.Context, m member.Member) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO members (`+memberColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.Identifier, m.SecretHash, m.Role, m.FirstName, m.LastName, m.Email, m.Phone,
		m.CreatedAt, m.UpdatedAt, m.DeletedAt, m.LastLoginAt)
	return mapError(err)
}

func (s *Store) GetMemberByID(ctx context.Context, id string) (*member.Member, error) {
	if !validID(id) {
		return nil, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return scanMember(s.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
}

func (s *Store) GetMemberByIdentifier(ctx context.Context, identifier string) (*member.Member, error) {
	return scanMember(s.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE identifier = $1`, identifier))
}

func (s *Store) ListMembers(ctx context.Context) ([]member.Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY identifier COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func updateSecretHash(ctx context.Context, q querier, id, secretHash string, at time.Time) error {
	if !validID(id) {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	tag, err := q.Exec(ctx,
		`UPDATE members SET secret_hash = $2, updated_at = $3 WHERE id = $1`,
		id, secretHash, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateSecretHash(ctx context.Context, id, secretHash string, at time.Time) error {
	return updateSecretHash(ctx, s.pool, id, secretHash, at)
}

func (s *Store) SetDeletedAt(ctx context.Context, id string, at *time.Time) error {
	if !validID(id) {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE members SET deleted_at = $2, updated_at = COALESCE($2, now()) WHERE id = $1`,
		id, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE members SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

const sessionColumns = `id, member_id, token_digest, issued_at, expires_at, revoked_at`

func scanSession(row pgx.Row) (*member.Session, error) {
	var sess member.Session
	err := row.Scan(&sess.ID, &sess.MemberID, &sess.TokenDigest, &sess.IssuedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess member.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.MemberID, sess.TokenDigest, sess.IssuedAt, sess.ExpiresAt, sess.RevokedAt)
	return mapError(err)
}

func (s *Store) GetSessionByDigest(ctx context.Context, digest string) (*member.Session, error) {
	return scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_digest = $1`, digest))
}

func (s *Store) ListSessions(ctx context.Context, memberID string) ([]member.Session, error) {
	if !validID(memberID) {
		return []member.Session{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE member_id = $1 ORDER BY issued_at DESC`,
		memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []member.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) RevokeSession(ctx context.Context, digest string, at time.Time) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`WITH updated AS (
			UPDATE sessions SET revoked_at = $2
			WHERE token_digest = $1 AND revoked_at IS NULL
			RETURNING 1
		)
		SELECT EXISTS(SELECT 1 FROM sessions WHERE token_digest = $1)`,
		digest, at).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return nil
}

func revokeMemberSessions(ctx context.Context, q querier, memberID string, at time.Time) (int, error) {
	if !validID(memberID) {
		return 0, nil
	}
	tag, err := q.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE member_id = $1 AND revoked_at IS NULL`,
		memberID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) RevokeMemberSessions(ctx context.Context, memberID string, at time.Time) (int, error) {
	return revokeMemberSessions(ctx, s.pool, memberID, at)
}

// RotateSecret swaps the secret hash and revokes every session of the member
// in one transaction.
func (s *Store) RotateSecret(ctx context.Context, memberID, secretHash string, at time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateSecretHash(ctx, tx, memberID, secretHash, at); err != nil {
		return 0, err
	}
	n, err := revokeMemberSessions(ctx, tx, memberID, at)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
