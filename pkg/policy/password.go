package policy

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrCredentialsMissing indicates no password was supplied
	ErrCredentialsMissing = errors.New("credentials missing")
	// ErrInvalidCredentials indicates a supplied password did not match
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidatePassword checks a plaintext password against a bcrypt hash. A
// missing password and a wrong password surface as distinct errors so
// callers can tell "no credentials presented" apart from "bad password".
func ValidatePassword(password, hash string) error {
	if password == "" {
		return ErrCredentialsMissing
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash for storage
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
