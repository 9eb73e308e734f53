package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password can not be empty")

// HashPassword returns the bcrypt hash of a console password.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePasswordAndHash checks a cleartext password against a stored hash.
// A mismatch is reported as ErrInvalidCredentials so callers never learn
// which part of the pair was wrong; a malformed hash is returned as is.
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials.Clone()
	default:
		return err
	}
}

// RandomPasswordHash hashes a random secret. The local provider compares
// against it when an email is unknown so both paths cost one bcrypt round.
func RandomPasswordHash() string {
	for {
		if h, err := HashPassword(uuid.NewString()); err == nil {
			return h
		}
	}
}
