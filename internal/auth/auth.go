// Package auth holds the panel's credential checks: the shared admin
// password and bearer tokens presented by agents.
//
// It makes no storage decisions; callers own where secrets live.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrUnauthorized  = errors.New("auth: unauthorized")
	ErrNotConfigured = errors.New("auth: secret not configured")
	ErrMissingToken  = errors.New("auth: missing token")
)

const bearerPrefix = "Bearer "

// Validator validates a presented credential.
type Validator interface {
	Validate(credential string) error
}

// SharedSecret accepts exactly one configured secret. An empty secret
// closes the gate entirely.
type SharedSecret struct {
	Secret string
}

func (s SharedSecret) Validate(credential string) error {
	if s.Secret == "" {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(s.Secret), []byte(credential)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(credential string) error

func (f FuncValidator) Validate(credential string) error {
	return f(credential)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is case sensitive.
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
