// Package auth authenticates operators calling the gateway. Tokens are
// static bearer credentials configured at startup; the matched actor
// identity is what gate decisions are recorded under.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims identifies an authenticated operator.
type Claims struct {
	Actor string
	Role  string
	Token string
}

type Authenticator interface {
	Authenticate(r *http.Request) (Claims, error)
}

// Operator pairs a bearer token with the identity it authenticates.
type Operator struct {
	Token string
	Actor string
	Role  string
}

// StaticAuthenticator matches bearer tokens against a fixed operator
// list.
type StaticAuthenticator struct {
	byToken map[string]Claims
}

func NewStaticAuthenticator(operators []Operator) *StaticAuthenticator {
	byToken := make(map[string]Claims, len(operators))
	for _, op := range operators {
		if op.Token == "" {
			continue
		}
		byToken[op.Token] = Claims{Actor: op.Actor, Role: op.Role, Token: op.Token}
	}
	return &StaticAuthenticator{byToken: byToken}
}

func (a *StaticAuthenticator) Authenticate(r *http.Request) (Claims, error) {
	bearer, err := extractBearer(r)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := a.byToken[bearer]
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
