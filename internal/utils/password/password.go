package password

import (
	"golang.org/x/crypto/bcrypt"
)

// MinLength is the shortest plaintext password accepted at registration.
const MinLength = 6

// MaxBytes is the longest password bcrypt can hash.
const MaxBytes = 72

// Hash turns a plaintext password into a salted bcrypt hash.
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// Check reports whether plain matches the stored hash.
func Check(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
