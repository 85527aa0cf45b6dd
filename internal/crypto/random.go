package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GenerateSecureToken creates a cryptographically secure random token.
// Returns a base64 URL-encoded string suitable for use as an admin bearer
// token.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// FilenameSuffix returns an 8-character lowercase hex string for
// collision-resistant artifact names. Panics only if the system entropy
// source is broken, in which case nothing else works either.
func FilenameSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// HashToken hashes a token using bcrypt
// This should be used before storing the token
func HashToken(token string) ([]byte, error) {
	// Use default cost (10) for bcrypt
	return bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
}

// VerifyToken reports whether token matches the bcrypt hash
func VerifyToken(hash []byte, token string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}

// IsBcryptHash reports whether s already looks like a bcrypt hash, so
// pre-hashed config values are not hashed twice
func IsBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
