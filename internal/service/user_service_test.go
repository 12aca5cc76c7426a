package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type stubUserRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
	created *models.User
	updated *models.User
	deleted []string
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (s *stubUserRepo) add(user *models.User) {
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user
}

func (s *stubUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	var users []models.User
	for _, u := range s.byID {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	s.created = user
	s.add(user)
	return nil
}

func (s *stubUserRepo) Update(_ context.Context, user *models.User) error {
	s.updated = user
	return nil
}

func (s *stubUserRepo) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestCreateUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:     "Admin@Example.com",
		FirstName: "Fatou",
		LastName:  "Sall",
		Role:      models.RoleAdmin,
		Active:    true,
		Password:  "secret123",
	})
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "taken@example.com"})
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:     "taken@example.com",
		FirstName: "A",
		LastName:  "B",
		Role:      models.RoleCandidate,
		Password:  "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestCreateUserInvalidRole(t *testing.T) {
	svc := NewUserService(newStubUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:     "new@example.com",
		FirstName: "A",
		LastName:  "B",
		Role:      "SUPERUSER",
		Password:  "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestUpdateUser(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "awa@example.com", FirstName: "Awa", LastName: "Ndiaye", Role: models.RoleCandidate, Active: true})
	svc := NewUserService(repo, nil, nil)

	inactive := false
	user, err := svc.Update(context.Background(), "u-1", UpdateUserRequest{
		FirstName: "Awa",
		LastName:  "Diop",
		Role:      models.RoleCandidate,
		Active:    &inactive,
	})
	require.NoError(t, err)

	assert.Equal(t, "Diop", user.LastName)
	assert.False(t, user.Active)
	require.NotNil(t, repo.updated)
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewUserService(newStubUserRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestDeleteUser(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "awa@example.com"})
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "u-1"))
	assert.Equal(t, []string{"u-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}
