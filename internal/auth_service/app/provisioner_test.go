package app

import (
	"context"
	"testing"

	"github.com/callmask/golang_services/internal/auth_service/domain"
	"github.com/callmask/golang_services/internal/auth_service/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCredentialProvisioner_AddUser(t *testing.T) {
	ctx := context.Background()

	t.Run("HashesPassword", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("Create", ctx, mock.MatchedBy(func(c *domain.Credential) bool {
			return c.Username == "ops_admin" && c.Scope == domain.ScopeAdmin &&
				c.PasswordHash != "s3cretpass" && CheckPasswordHash("s3cretpass", c.PasswordHash)
		})).Return(&domain.Credential{ID: 9, Username: "ops_admin", Scope: domain.ScopeAdmin}, nil).Once()

		p := NewCredentialProvisioner(repo, testLogger())
		cred, err := p.AddUser(ctx, "ops_admin", "s3cretpass", "", domain.ScopeAdmin)
		require.NoError(t, err)
		assert.Equal(t, int64(9), cred.ID)
		repo.AssertExpectations(t)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		p := NewCredentialProvisioner(repo, testLogger())

		_, err := p.AddUser(ctx, "a!", "s3cretpass", "", domain.ScopeUser)
		assert.ErrorIs(t, err, ErrInvalidUsername)
		_, err = p.AddUser(ctx, "alice", "short", "", domain.ScopeUser)
		assert.ErrorIs(t, err, ErrPasswordTooWeak)
		_, err = p.AddUser(ctx, "alice", "s3cretpass", "", domain.Scope("root"))
		assert.ErrorIs(t, err, domain.ErrUnknownScope)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateCredential).Once()
		p := NewCredentialProvisioner(repo, testLogger())

		_, err := p.AddUser(ctx, "alice", "s3cretpass", "+21611111111", domain.ScopeUser)
		assert.ErrorIs(t, err, repository.ErrDuplicateCredential)
	})
}
