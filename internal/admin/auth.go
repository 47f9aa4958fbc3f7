package admin

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid admin credentials")

// Authenticator checks the single configured admin account.
type Authenticator struct {
	username string
	hash     []byte
}

// NewAuthenticator takes a bcrypt hash of the admin password.
func NewAuthenticator(username, passwordHash string) (*Authenticator, error) {
	if username == "" || passwordHash == "" {
		return nil, errors.New("admin username and password hash are required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &Authenticator{username: username, hash: []byte(passwordHash)}, nil
}

// HashPassword is used at start-up when only a plain password is configured.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (a *Authenticator) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
