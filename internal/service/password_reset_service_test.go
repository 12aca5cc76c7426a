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

type stubResetRepo struct {
	codes       map[string]*models.PasswordResetOTP
	created     []*models.PasswordResetOTP
	invalidated []string
	used        []string
}

func (s *stubResetRepo) Create(_ context.Context, otp *models.PasswordResetOTP) error {
	otp.ID = "otp-1"
	s.created = append(s.created, otp)
	return nil
}

func (s *stubResetRepo) FindByCodeAndEmail(_ context.Context, code, email string) (*models.PasswordResetOTP, error) {
	otp, ok := s.codes[code+":"+email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return otp, nil
}

func (s *stubResetRepo) InvalidateByEmail(_ context.Context, email string) error {
	s.invalidated = append(s.invalidated, email)
	return nil
}

func (s *stubResetRepo) MarkUsed(_ context.Context, id string) error {
	s.used = append(s.used, id)
	return nil
}

type stubResetUserRepo struct {
	users           map[string]*models.User
	passwordUpdates map[string]string
	revoked         []string
}

func (s *stubResetUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubResetUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if s.passwordUpdates == nil {
		s.passwordUpdates = map[string]string{}
	}
	s.passwordUpdates[id] = passwordHash
	return nil
}

func (s *stubResetUserRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	s.revoked = append(s.revoked, userID)
	return nil
}

type stubMailer struct {
	sent     int
	lastTo   string
	lastBody string
}

func (s *stubMailer) Send(_ context.Context, to, _, _, plainText, _ string) error {
	s.sent++
	s.lastTo = to
	s.lastBody = plainText
	return nil
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) bool {
	s.keys = append(s.keys, key)
	return s.allow
}

func newResetFixture() (*PasswordResetService, *stubResetRepo, *stubResetUserRepo, *stubMailer, *stubLimiter) {
	repo := &stubResetRepo{codes: map[string]*models.PasswordResetOTP{}}
	users := &stubResetUserRepo{users: map[string]*models.User{
		"awa@example.com": {ID: "u-1", Email: "awa@example.com", FirstName: "Awa", LastName: "Ndiaye", Active: true},
	}}
	m := &stubMailer{}
	limiter := &stubLimiter{allow: true}
	svc := NewPasswordResetService(repo, users, m, limiter, 24*time.Hour, nil, nil)
	return svc, repo, users, m, limiter
}

func TestPasswordResetRequest(t *testing.T) {
	svc, repo, _, m, _ := newResetFixture()

	require.NoError(t, svc.Request(context.Background(), models.PasswordResetRequest{Email: "Awa@Example.com"}))

	require.Len(t, repo.created, 1)
	otp := repo.created[0]
	assert.Equal(t, "awa@example.com", otp.Email)
	assert.Len(t, otp.OTPCode, 6)
	for _, r := range otp.OTPCode {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric, got %q", otp.OTPCode)
	}
	assert.True(t, otp.ExpiryDate.After(time.Now().Add(23*time.Hour)))

	// Previous codes are invalidated before the new one is stored.
	assert.Equal(t, []string{"awa@example.com"}, repo.invalidated)
	assert.Equal(t, 1, m.sent)
	assert.Contains(t, m.lastBody, otp.OTPCode)
}

func TestPasswordResetRequestUnknownEmail(t *testing.T) {
	svc, repo, _, m, _ := newResetFixture()

	// Unknown accounts look identical to known ones from the outside.
	require.NoError(t, svc.Request(context.Background(), models.PasswordResetRequest{Email: "nobody@example.com"}))
	assert.Empty(t, repo.created)
	assert.Equal(t, 0, m.sent)
}

func TestPasswordResetRequestRateLimited(t *testing.T) {
	svc, repo, _, _, limiter := newResetFixture()
	limiter.allow = false

	err := svc.Request(context.Background(), models.PasswordResetRequest{Email: "awa@example.com"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestPasswordResetConfirm(t *testing.T) {
	svc, repo, users, _, _ := newResetFixture()
	repo.codes["123456:awa@example.com"] = &models.PasswordResetOTP{
		ID:         "otp-1",
		Email:      "awa@example.com",
		OTPCode:    "123456",
		ExpiryDate: time.Now().UTC().Add(time.Hour),
	}

	req := models.PasswordResetConfirm{Email: "awa@example.com", OTPCode: "123456", NewPassword: "newsecret"}
	require.NoError(t, svc.Confirm(context.Background(), req))

	hash, ok := users.passwordUpdates["u-1"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("newsecret")))
	assert.Equal(t, []string{"otp-1"}, repo.used)
	assert.Equal(t, []string{"u-1"}, users.revoked)
}

func TestPasswordResetConfirmExpiredCode(t *testing.T) {
	svc, repo, users, _, _ := newResetFixture()
	repo.codes["123456:awa@example.com"] = &models.PasswordResetOTP{
		ID:         "otp-1",
		Email:      "awa@example.com",
		OTPCode:    "123456",
		ExpiryDate: time.Now().UTC().Add(-time.Minute),
	}

	err := svc.Confirm(context.Background(), models.PasswordResetConfirm{Email: "awa@example.com", OTPCode: "123456", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
	assert.Empty(t, users.passwordUpdates)
}

func TestPasswordResetConfirmUsedCode(t *testing.T) {
	svc, repo, users, _, _ := newResetFixture()
	repo.codes["123456:awa@example.com"] = &models.PasswordResetOTP{
		ID:         "otp-1",
		Email:      "awa@example.com",
		OTPCode:    "123456",
		ExpiryDate: time.Now().UTC().Add(time.Hour),
		Used:       true,
	}

	err := svc.Confirm(context.Background(), models.PasswordResetConfirm{Email: "awa@example.com", OTPCode: "123456", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
	assert.Empty(t, users.passwordUpdates)
}

func TestPasswordResetConfirmWrongCode(t *testing.T) {
	svc, _, users, _, _ := newResetFixture()

	err := svc.Confirm(context.Background(), models.PasswordResetConfirm{Email: "awa@example.com", OTPCode: "000000", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
	assert.Empty(t, users.passwordUpdates)
}

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := generateOTP(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		seen[code] = true
	}
	// 20 identical codes would point at a broken generator.
	assert.Greater(t, len(seen), 1)
}
