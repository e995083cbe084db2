package api

import (
	"time"

	"github.com/soroboxing/gymgate/member"
)

// LoginRequest is the JSON body for POST /auth/login. The dni and pin keys
// are accepted for clients written against the previous API.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	DNI        string `json:"dni,omitempty"`
	PIN        string `json:"pin,omitempty"`
}

func (req LoginRequest) credentials() (identifier, secret string) {
	identifier, secret = req.Identifier, req.Secret
	if identifier == "" {
		identifier = req.DNI
	}
	if secret == "" {
		secret = req.PIN
	}
	return identifier, secret
}

// User is the client-facing view of a member.
type User struct {
	ID         string      `json:"id"`
	Identifier string      `json:"identifier"`
	Role       member.Role `json:"role"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Email      string      `json:"email,omitempty"`
	Phone      string      `json:"phone,omitempty"`
}

func userFromMember(m member.Member) User {
	return User{
		ID:         m.ID,
		Identifier: m.Identifier,
		Role:       m.Role,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Email:      m.Email,
		Phone:      m.Phone,
	}
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// MeResponse is returned from GET /auth/me.
type MeResponse struct {
	User User `json:"user"`
}

// SuccessResponse is returned by actions with nothing else to report.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AdminMember extends User with lifecycle fields for the admin views.
type AdminMember struct {
	User
	CreatedAt   time.Time  `json:"createdAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func adminMemberFrom(m member.Member) AdminMember {
	return AdminMember{
		User:        userFromMember(m),
		CreatedAt:   m.CreatedAt,
		DeletedAt:   m.DeletedAt,
		LastLoginAt: m.LastLoginAt,
	}
}

// ListMembersResponse is returned from GET /admin/members.
type ListMembersResponse struct {
	Members []AdminMember `json:"members"`
	PaginationMeta
}

// CreateMemberRequest is the JSON body for POST /admin/members.
type CreateMemberRequest struct {
	Identifier string      `json:"identifier"`
	Role       member.Role `json:"role,omitempty"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Email      string      `json:"email,omitempty"`
	Phone      string      `json:"phone,omitempty"`
}

// CreateMemberResponse is returned from POST /admin/members. Secret is the
// generated PIN and is shown exactly once.
type CreateMemberResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Secret  string `json:"secret"`
}

// ResetSecretResponse is returned from POST /admin/members/{memberID}/reset-secret.
type ResetSecretResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret"`
}

// RevokeSessionsResponse is returned from POST /admin/members/{memberID}/revoke-sessions.
type RevokeSessionsResponse struct {
	Success bool `json:"success"`
	Revoked int  `json:"revoked"`
}

// SessionSummary describes one session without its digest.
type SessionSummary struct {
	ID        string     `json:"id"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	Live      bool       `json:"live"`
}

// MemberDetailResponse is returned from GET /admin/members/{memberID}.
type MemberDetailResponse struct {
	Member   AdminMember      `json:"member"`
	Sessions []SessionSummary `json:"sessions"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
