package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type stubAuthRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	created       *models.User
	tokens        map[string]*models.RefreshToken
	revokedTokens []string
	revokedUsers  []string
	lastLogin     map[string]time.Time
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		tokens:       map[string]*models.RefreshToken{},
		lastLogin:    map[string]time.Time{},
	}
}

func (s *stubAuthRepo) addUser(user *models.User) {
	s.usersByEmail[user.Email] = user
	s.usersByID[user.ID] = user
}

func (s *stubAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubAuthRepo) Create(_ context.Context, user *models.User) error {
	s.created = user
	s.addUser(user)
	return nil
}

func (s *stubAuthRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	s.lastLogin[id] = ts
	return nil
}

func (s *stubAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if user, ok := s.usersByID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (s *stubAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	s.revokedUsers = append(s.revokedUsers, userID)
	return nil
}

func (s *stubAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.tokens[token.Token] = token
	return nil
}

func (s *stubAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := s.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (s *stubAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	s.revokedTokens = append(s.revokedTokens, id)
	for _, rt := range s.tokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "agrt-api",
		Audience:           []string{"agrt"},
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegister(t *testing.T) {
	repo := newStubAuthRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "New@Example.com",
		Password:  "secret123",
		FirstName: "Awa",
		LastName:  "Ndiaye",
	})
	require.NoError(t, err)

	require.NotNil(t, repo.created)
	assert.Equal(t, "new@example.com", repo.created.Email)
	assert.Equal(t, models.RoleCandidate, repo.created.Role)
	assert.True(t, repo.created.Active)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, repo.created.ID, claims.UserID)
	assert.Equal(t, models.RoleCandidate, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "taken@example.com"})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "taken@example.com",
		Password:  "secret123",
		FirstName: "A",
		LastName:  "B",
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestLogin(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", PasswordHash: mustHash(t, "secret123"), Role: models.RoleCandidate, Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "awa@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Contains(t, repo.lastLogin, "u-1")
	assert.Contains(t, repo.tokens, resp.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", PasswordHash: mustHash(t, "secret123"), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "awa@example.com", Password: "wrong1234"})
	require.Error(t, err)
	assert.Equal(t, "INVALID_CREDENTIALS", appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", PasswordHash: mustHash(t, "secret123"), Active: false})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "awa@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, "ACCOUNT_INACTIVE", appErrors.FromError(err).Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", Active: true, Role: models.RoleCandidate})
	repo.tokens["old-token"] = &models.RefreshToken{ID: "rt-1", UserID: "u-1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)

	// The used token is revoked and a fresh one issued in its place.
	assert.Contains(t, repo.revokedTokens, "rt-1")
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.tokens, resp.RefreshToken)
}

func TestRefreshTokenRevoked(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", Active: true})
	repo.tokens["old-token"] = &models.RefreshToken{ID: "rt-1", UserID: "u-1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour), Revoked: true}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", Active: true})
	repo.tokens["old-token"] = &models.RefreshToken{ID: "rt-1", UserID: "u-1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}

func TestLogout(t *testing.T) {
	repo := newStubAuthRepo()
	repo.tokens["token"] = &models.RefreshToken{ID: "rt-1", UserID: "u-1", Token: "token", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	require.NoError(t, svc.Logout(context.Background(), "token", "u-1"))
	assert.Contains(t, repo.revokedTokens, "rt-1")

	// A token from another account cannot be revoked.
	repo.tokens["other"] = &models.RefreshToken{ID: "rt-2", UserID: "u-2", Token: "other", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	err := svc.Logout(context.Background(), "other", "u-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestChangePassword(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", PasswordHash: mustHash(t, "oldsecret"), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	req := models.ChangePasswordRequest{OldPassword: "oldsecret", NewPassword: "newsecret"}
	require.NoError(t, svc.ChangePassword(context.Background(), "u-1", req))

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.usersByID["u-1"].PasswordHash), []byte("newsecret")))
	assert.Equal(t, []string{"u-1"}, repo.revokedUsers)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addUser(&models.User{ID: "u-1", Email: "awa@example.com", PasswordHash: mustHash(t, "oldsecret"), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{OldPassword: "wrongsecret", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	repo := newStubAuthRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "awa@example.com",
		Password:  "secret123",
		FirstName: "Awa",
		LastName:  "Ndiaye",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different-secret", AccessTokenExpiry: time.Minute, RefreshTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}
