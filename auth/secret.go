package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/soroboxing/gymgate/internal/util"
)

// Bounds and default for the number of digits in generated PINs.
const (
	MinSecretLength     = 4
	MaxSecretLength     = 6
	DefaultSecretLength = 6
)

// HashSecret hashes a PIN into an argon2id PHC string.
func HashSecret(secret string, params util.Argon2idParams) (string, error) {
	return util.HashArgon2idPHC(secret, params)
}

// VerifySecret reports whether secret matches encoded. Argon2id PHC strings
// and bcrypt hashes ($2a$, $2b$, $2y$) are understood; anything else yields
// ErrMalformedSecretHash.
func VerifySecret(secret, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		ok, err := util.VerifyArgon2idPHC(secret, encoded)
		if errors.Is(err, util.ErrMalformedHash) {
			return false, ErrMalformedSecretHash
		}
		return ok, err
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrMalformedSecretHash, err)
		}
	default:
		return false, ErrMalformedSecretHash
	}
}

func isBcrypt(encoded string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}

// GenerateSecret returns a random numeric PIN. length is clamped to
// MinSecretLength..MaxSecretLength.
func GenerateSecret(length int) (string, error) {
	length = max(MinSecretLength, min(length, MaxSecretLength))
	return util.RandomDigits(length)
}
