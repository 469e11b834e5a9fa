package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithAuth(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		r.Header.Set("Authorization", value)
	}
	return r
}

func TestAuthenticateKnownToken(t *testing.T) {
	a := NewStaticAuthenticator([]Operator{
		{Token: "tok-1", Actor: "alice@example.com", Role: "security-lead"},
	})

	claims, err := a.Authenticate(requestWithAuth("Bearer tok-1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if claims.Actor != "alice@example.com" || claims.Role != "security-lead" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewStaticAuthenticator([]Operator{{Token: "tok-1", Actor: "alice"}})

	if _, err := a.Authenticate(requestWithAuth("")); !errors.Is(err, ErrMissingBearer) {
		t.Errorf("missing header err = %v", err)
	}
	if _, err := a.Authenticate(requestWithAuth("Basic abc")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("non-bearer err = %v", err)
	}
	if _, err := a.Authenticate(requestWithAuth("Bearer ")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty token err = %v", err)
	}
	if _, err := a.Authenticate(requestWithAuth("Bearer wrong")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown token err = %v", err)
	}
}
