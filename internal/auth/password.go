package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no account matches a login key, so unknown
// accounts cost the same bcrypt work as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vidtube-timing-equaliser"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether plaintext matches the stored hash.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// CheckMissingPassword burns the same time as CheckPassword for a login key that
// matched no account. It always reports false.
func CheckMissingPassword(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
	return false
}
