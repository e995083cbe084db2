package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const digits = "0123456789"

// RandomDigits returns n uniformly random decimal digits. Leading zeros are
// allowed.
func RandomDigits(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(digits))
		if err != nil {
			return "", fmt.Errorf("generating random digit: %w", err)
		}
		sb.WriteByte(digits[idx])
	}
	return sb.String(), nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
