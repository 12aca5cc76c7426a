package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unchk/agrt-api/internal/mailer"
	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type passwordResetRepository interface {
	Create(ctx context.Context, otp *models.PasswordResetOTP) error
	FindByCodeAndEmail(ctx context.Context, code, email string) (*models.PasswordResetOTP, error)
	InvalidateByEmail(ctx context.Context, email string) error
	MarkUsed(ctx context.Context, id string) error
}

type passwordResetUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type rateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// PasswordResetService drives the emailed one-time code flow. Requests are
// rate limited per email, each new code invalidates all previous ones and a
// code is single use.
type PasswordResetService struct {
	repo      passwordResetRepository
	users     passwordResetUserRepository
	mailer    mailer.Mailer
	limiter   rateLimiter
	validator *validator.Validate
	logger    *zap.Logger
	otpExpiry time.Duration
	now       func() time.Time
}

// NewPasswordResetService creates an instance of PasswordResetService.
func NewPasswordResetService(
	repo passwordResetRepository,
	users passwordResetUserRepository,
	m mailer.Mailer,
	limiter rateLimiter,
	otpExpiry time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if otpExpiry <= 0 {
		otpExpiry = 24 * time.Hour
	}
	return &PasswordResetService{
		repo:      repo,
		users:     users,
		mailer:    m,
		limiter:   limiter,
		validator: validate,
		logger:    logger,
		otpExpiry: otpExpiry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Request issues a reset code and emails it. To avoid account enumeration an
// unknown email is treated as success without sending anything.
func (s *PasswordResetService) Request(ctx context.Context, req models.PasswordResetRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset request payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.limiter != nil && !s.limiter.Allow(ctx, email) {
		return appErrors.Clone(appErrors.ErrValidation, "too many reset requests, try again later")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("reset requested for unknown email", zap.String("email", email))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := s.repo.InvalidateByEmail(ctx, email); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate previous codes")
	}

	code, err := generateOTP(6)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset code")
	}

	otp := &models.PasswordResetOTP{
		Email:      email,
		OTPCode:    code,
		ExpiryDate: s.now().Add(s.otpExpiry),
	}
	if err := s.repo.Create(ctx, otp); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset code")
	}

	body := fmt.Sprintf("Your password reset code is %s. It expires in %s.", code, s.otpExpiry)
	if err := s.mailer.Send(ctx, email, user.FullName(), "Password reset code", body, fmt.Sprintf("<p>%s</p>", body)); err != nil {
		s.logger.Warn("failed to send reset email", zap.Error(err), zap.String("email", email))
	}

	s.logger.Info("password reset code issued", zap.String("email", email))
	return nil
}

// Confirm validates the emailed code and updates the password. All refresh
// tokens for the account are revoked.
func (s *PasswordResetService) Confirm(ctx context.Context, req models.PasswordResetConfirm) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset confirm payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	otp, err := s.repo.FindByCodeAndEmail(ctx, req.OTPCode, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired reset code")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reset code")
	}
	if otp.Used || otp.IsExpired(s.now()) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired reset code")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired reset code")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(newHash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.MarkUsed(ctx, otp.ID); err != nil {
		s.logger.Warn("failed to consume reset code", zap.Error(err), zap.String("otp_id", otp.ID))
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after reset", zap.Error(err))
	}

	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}

// generateOTP produces a numeric code of the given length using crypto/rand.
func generateOTP(length int) (string, error) {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteString(n.String())
	}
	return sb.String(), nil
}
