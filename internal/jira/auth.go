package jira

import (
	"fmt"
	"net/http"
	"strings"
)

// Authenticator applies authentication to requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BasicAuth authenticates with an account email and API token.
type BasicAuth struct {
	Email string
	Token string
}

// Apply sets the Basic Authorization header.
func (b *BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Email, b.Token)
	return nil
}

// BearerAuth authenticates with a personal access token.
type BearerAuth struct {
	Token string
}

// Apply sets the Bearer Authorization header.
func (b *BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Anonymous sends no credentials.
type Anonymous struct{}

// Apply is a no-op.
func (Anonymous) Apply(*http.Request) error { return nil }

// NewAuthenticator builds an Authenticator for the configured auth type:
// "basic", "bearer" (alias "pat") or "anonymous".
func NewAuthenticator(authType, email, token string) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(authType)) {
	case "", "basic":
		return &BasicAuth{Email: email, Token: token}, nil
	case "bearer", "pat":
		return &BearerAuth{Token: token}, nil
	case "anonymous", "none":
		return Anonymous{}, nil
	}
	return nil, fmt.Errorf("jira: unknown auth type %q", authType)
}
