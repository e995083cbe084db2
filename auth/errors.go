package auth

import "errors"

var (
	// ErrMissingCredentials indicates an empty identifier or secret.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// secret. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the member has been soft-deleted.
	ErrAccountInactive = errors.New("account inactive")

	// ErrNoSession indicates no bearer token was presented.
	ErrNoSession = errors.New("no session")
	// ErrSessionInvalid indicates an unknown or revoked token, or a token whose
	// member is gone or inactive.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionExpired indicates the session's fixed expiry has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthorized indicates an authenticated member lacks the admin role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreFailure wraps any error returned by a storage backend.
	ErrStoreFailure = errors.New("store failure")
	// ErrMalformedSecretHash indicates a stored secret hash in no known format.
	ErrMalformedSecretHash = errors.New("malformed secret hash")

	ErrMemberNotFound    = errors.New("member not found")
	ErrMemberExists      = errors.New("member already exists")
	ErrAlreadyInactive   = errors.New("member already inactive")
	ErrAlreadyActive     = errors.New("member already active")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// IsAuthFailure reports whether err means "no identity" rather than an
// infrastructure problem.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrSessionInvalid) ||
		errors.Is(err, ErrSessionExpired)
}
