package member

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ValidationError reports a malformed member attribute.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NormalizeIdentifier folds an identifier into its canonical stored form:
// NFKC (so full-width digits and letters typed on mobile keyboards match),
// surrounding whitespace trimmed, upper-cased.
func NormalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(identifier)))
}

// NormalizeSecret applies NFKC and trims whitespace. PINs are compared
// after this so that "１２３４" entered on a full-width keyboard verifies.
func NormalizeSecret(secret string) string {
	return strings.TrimSpace(norm.NFKC.String(secret))
}

// ValidateIdentifier checks an already-normalised identifier.
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return validationErrorf("identifier must not be empty")
	}
	if len(identifier) > MaxIdentifierLength {
		return validationErrorf("identifier exceeds maximum length of %d", MaxIdentifierLength)
	}
	if !utf8.ValidString(identifier) {
		return validationErrorf("identifier contains invalid UTF-8")
	}
	for _, r := range identifier {
		if r == '-' || unicode.IsDigit(r) || unicode.IsLetter(r) {
			continue
		}
		return validationErrorf("identifier contains forbidden character %q", r)
	}
	return nil
}

// ValidateRole rejects roles other than member and admin.
func ValidateRole(role Role) error {
	switch role {
	case RoleMember, RoleAdmin:
		return nil
	default:
		return validationErrorf("invalid member role %q", role)
	}
}

// ValidateProfile checks the free-form display attributes.
func ValidateProfile(m Member) error {
	for label, v := range map[string]string{"first name": m.FirstName, "last name": m.LastName} {
		if len(v) > MaxNameLength {
			return validationErrorf("%s exceeds maximum length of %d", label, MaxNameLength)
		}
	}
	for label, v := range map[string]string{"email": m.Email, "phone": m.Phone} {
		if len(v) > MaxContactLength {
			return validationErrorf("%s exceeds maximum length of %d", label, MaxContactLength)
		}
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return validationErrorf("email %q is not a valid address", m.Email)
	}
	for _, v := range []string{m.FirstName, m.LastName, m.Email, m.Phone} {
		for _, r := range v {
			if unicode.IsControl(r) {
				return validationErrorf("profile field contains control character")
			}
		}
	}
	return nil
}
