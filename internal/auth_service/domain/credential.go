package domain

import (
	"fmt"
	"strings"
	"time"
)

// Scope is the closed set of access levels a credential or token can carry.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// ParseScope accepts exactly one of the known scope values.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeUser:
		return ScopeUser, nil
	case ScopeAdmin:
		return ScopeAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// NormalizeScope is ParseScope for operator input: surrounding spaces and
// case are ignored. Tokens and stored rows go through ParseScope.
func NormalizeScope(s string) (Scope, error) {
	scope, err := ParseScope(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
	}
	return scope, nil
}

// Satisfies reports whether s grants required. Scopes are flat: admin does not imply user.
func (s Scope) Satisfies(required Scope) bool {
	return s == required
}

func (s Scope) String() string { return string(s) }

// Credential is a row of the users table. The core only reads it;
// provisioning happens out of band.
type Credential struct {
	ID           int64
	Username     string
	PasswordHash string
	RealNumber   string
	Scope        Scope
	CreatedAt    time.Time
}

// Claims is what a verified token asserts.
type Claims struct {
	Subject   string
	Scope     Scope
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is a signed access token handed out by Login.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}
