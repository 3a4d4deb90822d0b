package util

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams captures the cost parameters alongside derived material so
// stored hashes stay verifiable if the defaults are raised later.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2idParams follows the RFC 9106 low-memory recommendation.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32}
}

// DeriveArgon2idKey hashes secret with the given salt and parameters. Only
// 32-byte outputs are supported.
func DeriveArgon2idKey(secret string, salt []byte, params Argon2idParams) ([]byte, error) {
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("argon2id key length must be 32 bytes, got %d", params.KeyLen)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("argon2id salt must not be empty")
	}
	return argon2.IDKey([]byte(secret), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen), nil
}

// CompareArgon2idKey re-derives the hash for secret and compares it against
// expected in constant time.
func CompareArgon2idKey(secret string, salt []byte, params Argon2idParams, expected []byte) (bool, error) {
	key, err := DeriveArgon2idKey(secret, salt, params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}
