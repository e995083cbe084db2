package auth

import (
	"time"

	"github.com/soroboxing/gymgate/member"
)

// Identity is the resolved owner of a live session.
type Identity struct {
	MemberID   string
	Identifier string
	Role       member.Role
	SessionID  string
	ExpiresAt  time.Time
}

// IsAdmin reports whether the identity holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == member.RoleAdmin
}

// RequireAdmin returns ErrUnauthorized unless the identity is an admin.
func (id Identity) RequireAdmin() error {
	if !id.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

// LoginResult is returned by a successful Login. Token is the raw bearer
// token; it exists nowhere else and must go straight into the cookie.
type LoginResult struct {
	Token   string
	Session member.Session
	Member  member.Member
}
