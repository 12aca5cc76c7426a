package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unchk/agrt-api/internal/models"
)

const passwordResetColumns = "id, email, otp_code, expiry_date, created_at, is_used"

// PasswordResetRepository provides database access for password reset codes.
type PasswordResetRepository struct {
	db *sqlx.DB
}

// NewPasswordResetRepository creates a new instance of PasswordResetRepository.
func NewPasswordResetRepository(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create inserts a reset code.
func (r *PasswordResetRepository) Create(ctx context.Context, otp *models.PasswordResetOTP) error {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_otps (id, email, otp_code, expiry_date, created_at, is_used) VALUES (:id, :email, :otp_code, :expiry_date, :created_at, :is_used)`
	if _, err := r.db.NamedExecContext(ctx, query, otp); err != nil {
		return fmt.Errorf("create password reset code: %w", err)
	}
	return nil
}

// FindByCodeAndEmail returns the unused reset entry matching both code and
// email.
func (r *PasswordResetRepository) FindByCodeAndEmail(ctx context.Context, code, email string) (*models.PasswordResetOTP, error) {
	query := fmt.Sprintf("SELECT %s FROM password_reset_otps WHERE otp_code = $1 AND email = $2 AND is_used = FALSE ORDER BY created_at DESC LIMIT 1", passwordResetColumns)
	var otp models.PasswordResetOTP
	if err := r.db.GetContext(ctx, &otp, query, code, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset code: %w", err)
	}
	return &otp, nil
}

// InvalidateByEmail marks every outstanding code for the email as used, so a
// newly issued code is the only valid one.
func (r *PasswordResetRepository) InvalidateByEmail(ctx context.Context, email string) error {
	const query = `UPDATE password_reset_otps SET is_used = TRUE WHERE email = $1 AND is_used = FALSE`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("invalidate password reset codes: %w", err)
	}
	return nil
}

// MarkUsed consumes a reset code.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `UPDATE password_reset_otps SET is_used = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark password reset code used: %w", err)
	}
	return nil
}
