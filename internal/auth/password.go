package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// hashPrefixes are the bcrypt scheme tags accepted on restore. A restore
// document carrying anything else (in particular a plaintext password that
// was never hashed) is rejected.
var hashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidHashPrefix reports whether s carries a recognized hash scheme tag.
func ValidHashPrefix(s string) bool {
	for _, p := range hashPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
