package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyHash checks data against an expected hex digest.
// An empty expected digest never matches.
func VerifyHash(data []byte, expected string) bool {
	if len(expected) != 64 {
		return false
	}
	return HashBytes(data) == expected
}
