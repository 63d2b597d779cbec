package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 32

// NewResetToken returns a random plaintext token and the digest to store.
// Only the digest is persisted; the plaintext goes out by email once.
func NewResetToken() (plain, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
