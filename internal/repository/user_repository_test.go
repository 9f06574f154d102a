package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workout/backend/internal/model"
	"workout/backend/internal/repository"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	repo := repository.NewUserRepository(openTestDB(t))
	ctx := context.Background()

	user := &model.User{
		ID:           "u1",
		Email:        "lifter@example.com",
		DisplayName:  "Lifter",
		PasswordHash: "hash",
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	require.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.GetByEmail(ctx, "lifter@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "Lifter", byEmail.DisplayName)
	assert.True(t, byEmail.CreatedAt.Equal(t0))

	byID, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "lifter@example.com", byID.Email)

	_, err = repo.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := repository.NewUserRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{ID: "u1", Email: "a@example.com", CreatedAt: t0, UpdatedAt: t0}))
	err := repo.Create(ctx, &model.User{ID: "u2", Email: "a@example.com", CreatedAt: t0, UpdatedAt: t0})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}
