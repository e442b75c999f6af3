package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/callmask/golang_services/internal/auth_service/repository"
	"github.com/callmask/golang_services/internal/platform/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgCredentialRepository struct {
	db database.Querier
}

func NewPgCredentialRepository(db database.Querier) repository.CredentialRepository {
	return &pgCredentialRepository{db: db}
}

func (r *pgCredentialRepository) GetByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	query := `
        SELECT id, username, password, COALESCE(real_number, ''), scope, created_at
        FROM users WHERE username = $1
    `
	var (
		cred  domain.Credential
		scope string
	)
	err := r.db.QueryRow(ctx, query, username).Scan(
		&cred.ID, &cred.Username, &cred.PasswordHash, &cred.RealNumber, &scope, &cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrCredentialNotFound
		}
		return nil, err
	}

	cred.Scope, err = domain.ParseScope(scope)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return &cred, nil
}

func (r *pgCredentialRepository) Create(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	query := `
		INSERT INTO users (username, password, real_number, scope)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, cred.Username, cred.PasswordHash, cred.RealNumber, string(cred.Scope)).
		Scan(&cred.ID, &cred.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrDuplicateCredential
		}
		return nil, err
	}
	return cred, nil
}
