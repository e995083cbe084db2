package util

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Named argon2id cost profiles and the lowest parameters ValidateArgon2idParams
// accepts.
const (
	KDFProfileInteractive = "interactive"
	KDFProfileModerate    = "moderate"
	KDFProfileSensitive   = "sensitive"

	MinArgon2Time      uint32 = 1
	MinArgon2MemoryKiB uint32 = 19 * 1024
	MinArgon2Parallel  uint8  = 1

	argon2SaltLen = 16
)

// ErrMalformedHash is returned when a stored hash is not a PHC argon2id string.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Argon2idParams are the argon2id cost parameters.
type Argon2idParams struct {
	Time        uint32 `json:"time" mapstructure:"time"`
	MemoryKiB   uint32 `json:"memory" mapstructure:"memory"`
	Parallelism uint8  `json:"parallelism" mapstructure:"parallelism"`
	KeyLen      uint32 `json:"key_len" mapstructure:"key_len"`
}

// DefaultArgon2idParams returns the moderate profile.
func DefaultArgon2idParams() Argon2idParams {
	p, _ := Argon2idProfile(KDFProfileModerate)
	return p
}

// Argon2idProfile returns the named cost profile.
func Argon2idProfile(name string) (Argon2idParams, error) {
	switch name {
	case KDFProfileInteractive:
		return Argon2idParams{Time: 2, MemoryKiB: 19 * 1024, Parallelism: 1, KeyLen: 32}, nil
	case KDFProfileModerate:
		return Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32}, nil
	case KDFProfileSensitive:
		return Argon2idParams{Time: 4, MemoryKiB: 128 * 1024, Parallelism: 4, KeyLen: 32}, nil
	default:
		return Argon2idParams{}, fmt.Errorf("unknown kdf profile %q", name)
	}
}

// ValidateArgon2idParams rejects parameters below the minimums.
func ValidateArgon2idParams(p Argon2idParams) error {
	if p.KeyLen != 32 {
		return fmt.Errorf("argon2id key length must be 32 bytes")
	}
	if p.Time < MinArgon2Time {
		return fmt.Errorf("argon2id time must be at least %d", MinArgon2Time)
	}
	if p.MemoryKiB < MinArgon2MemoryKiB {
		return fmt.Errorf("argon2id memory must be at least %d KiB", MinArgon2MemoryKiB)
	}
	if p.Parallelism < MinArgon2Parallel {
		return fmt.Errorf("argon2id parallelism must be at least %d", MinArgon2Parallel)
	}
	return nil
}

// DeriveArgon2idKey derives a 32-byte key from passphrase and salt.
func DeriveArgon2idKey(passphrase string, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes")
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}

// CompareArgon2idKey derives a key and compares it with expectedKey in
// constant time.
func CompareArgon2idKey(passphrase string, salt []byte, params Argon2idParams, expectedKey []byte) (bool, error) {
	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return false, err
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}

// HashArgon2idPHC derives a key with a fresh salt and encodes it in the PHC
// string format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>.
func HashArgon2idPHC(passphrase string, params Argon2idParams) (string, error) {
	salt, err := RandomBytes(argon2SaltLen)
	if err != nil {
		return "", err
	}
	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return "", err
	}
	defer WipeBytes(key)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.MemoryKiB, params.Time, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// ParseArgon2idPHC splits a PHC string into its parameters, salt and key.
func ParseArgon2idPHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	var p Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Parallelism); err != nil {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) != 32 {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	p.KeyLen = uint32(len(key))
	if p.Time == 0 || p.Parallelism == 0 {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	return p, salt, key, nil
}

// VerifyArgon2idPHC reports whether passphrase matches the PHC-encoded hash.
func VerifyArgon2idPHC(passphrase, encoded string) (bool, error) {
	p, salt, key, err := ParseArgon2idPHC(encoded)
	if err != nil {
		return false, err
	}
	return CompareArgon2idKey(passphrase, salt, p, key)
}
