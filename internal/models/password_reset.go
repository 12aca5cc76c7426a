package models

import "time"

// PasswordResetOTP is an emailed one-time code used to reset a password.
type PasswordResetOTP struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	OTPCode    string    `db:"otp_code" json:"-"`
	ExpiryDate time.Time `db:"expiry_date" json:"expiry_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	Used       bool      `db:"is_used" json:"used"`
}

// IsExpired reports whether the code is past its expiry at the given time.
func (o *PasswordResetOTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiryDate)
}
