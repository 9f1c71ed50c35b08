package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// ErrMalformedHash is returned when a stored hash is not in salt$hash form
// or its parts have the wrong length.
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword generates a salted Argon2id hash of the password, encoded as
// base64(salt) + "$" + base64(hash).
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPassword compares a password with an encoded hash from HashPassword.
func VerifyPassword(password, encoded string) (bool, error) {
	encodedSalt, encodedHash, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrMalformedHash
	}

	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(encodedHash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	if len(salt) == 0 || len(hash) != argonKeyLen {
		return false, ErrMalformedHash
	}

	comparisonHash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(hash, comparisonHash) == 1, nil
}

// CheckHash reports whether encoded has the shape HashPassword produces.
func CheckHash(encoded string) error {
	_, err := VerifyPassword("", encoded)
	return err
}
