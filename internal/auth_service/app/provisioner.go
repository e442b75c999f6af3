package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/callmask/golang_services/internal/auth_service/repository"
)

var (
	ErrInvalidUsername = errors.New("username must be 3-50 characters of letters, digits or underscore")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

// CredentialProvisioner creates users out of band (poolctl add-user).
// The request path never writes credentials.
type CredentialProvisioner struct {
	creds  repository.CredentialRepository
	logger *slog.Logger
}

func NewCredentialProvisioner(creds repository.CredentialRepository, logger *slog.Logger) *CredentialProvisioner {
	return &CredentialProvisioner{creds: creds, logger: logger}
}

func (p *CredentialProvisioner) AddUser(ctx context.Context, username, password, realNumber string, scope domain.Scope) (*domain.Credential, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooWeak
	}
	if _, err := domain.ParseScope(scope.String()); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	cred, err := p.creds.Create(ctx, &domain.Credential{
		Username:     username,
		PasswordHash: hash,
		RealNumber:   realNumber,
		Scope:        scope,
	})
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "Credential created", "username", username, "scope", scope)
	return cred, nil
}
