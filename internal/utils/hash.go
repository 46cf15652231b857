package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

func GenerateRandomToken(size int) (string, error) {
	buffer := make([]byte, size)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken is the at-rest form of a session or verification token. Only the
// hash is ever stored or queried.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DeviceFingerprint derives a grouping key from the client-declared identity
// string and its network origin. It is a heuristic, not a security boundary.
func DeviceFingerprint(userAgent string, ipAddress string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + ipAddress))
	return hex.EncodeToString(sum[:])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
