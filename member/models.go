// Package member defines the gym member and session records shared by the
// authentication service, the storage backends and the HTTP API.
package member

import "time"

// Role defines the access level of a member.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member is an account holder. SecretHash is never serialised to clients.
type Member struct {
	ID          string     `json:"id"`
	Identifier  string     `json:"identifier"`
	SecretHash  string     `json:"-"`
	Role        Role       `json:"role"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Active reports whether the member has not been soft-deleted.
func (m Member) Active() bool {
	return m.DeletedAt == nil
}

// IsAdmin reports whether the member holds the admin role.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Session is the server-side record behind one bearer token. Only the
// digest of the token is stored.
type Session struct {
	ID          string     `json:"id"`
	MemberID    string     `json:"member_id"`
	TokenDigest string     `json:"token_digest"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the session has been revoked.
func (s Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session's fixed expiry has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Live reports whether the session can still authenticate requests at now.
func (s Session) Live(now time.Time) bool {
	return !s.Revoked() && !s.Expired(now)
}

// Validation limits.
const (
	MaxIdentifierLength = 32
	MaxNameLength       = 128
	MaxContactLength    = 254
)
