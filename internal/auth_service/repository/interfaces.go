package repository

import (
	"context"
	"errors"

	"github.com/callmask/golang_services/internal/auth_service/domain"
)

var (
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrDuplicateCredential = errors.New("username already exists")
)

// CredentialRepository defines the interface for credential persistence.
type CredentialRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Credential, error)
	Create(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
}
