package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/callmask/golang_services/internal/auth_service/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCredentialTest(t *testing.T) (repository.CredentialRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPgCredentialRepository(mockPool), mockPool
}

func TestPgCredentialRepository_GetByUsername(t *testing.T) {
	repo, mockPool := setupCredentialTest(t)
	defer mockPool.Close()

	createdAt := time.Now().Add(-48 * time.Hour)
	columns := []string{"id", "username", "password", "real_number", "scope", "created_at"}
	query := `FROM users WHERE username = \$1`

	t.Run("Found", func(t *testing.T) {
		rows := mockPool.NewRows(columns).AddRow(int64(7), "alice", "$2a$10$hash", "+21612345678", "admin", createdAt)
		mockPool.ExpectQuery(query).WithArgs("alice").WillReturnRows(rows)

		cred, err := repo.GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(7), cred.ID)
		assert.Equal(t, "$2a$10$hash", cred.PasswordHash)
		assert.Equal(t, domain.ScopeAdmin, cred.Scope)
		assert.Equal(t, "+21612345678", cred.RealNumber)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool.ExpectQuery(query).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

		cred, err := repo.GetByUsername(context.Background(), "ghost")
		assert.ErrorIs(t, err, repository.ErrCredentialNotFound)
		assert.Nil(t, cred)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownScopeInRow", func(t *testing.T) {
		rows := mockPool.NewRows(columns).AddRow(int64(8), "mallory", "$2a$10$hash", "", "root", createdAt)
		mockPool.ExpectQuery(query).WithArgs("mallory").WillReturnRows(rows)

		cred, err := repo.GetByUsername(context.Background(), "mallory")
		assert.ErrorIs(t, err, domain.ErrUnknownScope)
		assert.Nil(t, cred)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery(query).WithArgs("alice").WillReturnError(dbErr)

		_, err := repo.GetByUsername(context.Background(), "alice")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgCredentialRepository_Create(t *testing.T) {
	repo, mockPool := setupCredentialTest(t)
	defer mockPool.Close()

	query := `INSERT INTO users \(username, password, real_number, scope\)`

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		mockPool.ExpectQuery(query).
			WithArgs("bob", "$2a$10$hash", "", "user").
			WillReturnRows(mockPool.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

		cred, err := repo.Create(context.Background(), &domain.Credential{
			Username: "bob", PasswordHash: "$2a$10$hash", Scope: domain.ScopeUser,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), cred.ID)
		assert.Equal(t, now, cred.CreatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Duplicate", func(t *testing.T) {
		mockPool.ExpectQuery(query).
			WithArgs("bob", "$2a$10$hash", "", "user").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		cred, err := repo.Create(context.Background(), &domain.Credential{
			Username: "bob", PasswordHash: "$2a$10$hash", Scope: domain.ScopeUser,
		})
		assert.ErrorIs(t, err, repository.ErrDuplicateCredential)
		assert.Nil(t, cred)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
