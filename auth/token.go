package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/soroboxing/gymgate/internal/util"
)

// TokenBytes is the entropy of a raw session token.
const TokenBytes = 32

// HashToken returns the lowercase hex SHA-256 digest of a raw bearer token.
// Tokens are high-entropy random values, so a fast unkeyed digest suffices.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewToken returns a fresh random bearer token, base64url without padding.
func NewToken() (string, error) {
	b, err := util.RandomBytes(TokenBytes)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(b)
	return base64.RawURLEncoding.EncodeToString(b), nil
}
