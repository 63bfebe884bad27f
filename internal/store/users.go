package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, password, role, avatar, is_verified, otp, otp_expiry,
	otp_last_sent, otp_attempts, is_blocked, login_attempts, last_login_attempt,
	reset_password_token, reset_password_expire, created_at`

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// PendingRegistration is the state written for a user awaiting email verification
type PendingRegistration struct {
	Name         string
	Email        string
	PasswordHash string
	OTPHash      string
	OTPExpiry    time.Time
	SentAt       time.Time
}

// UpsertUnverifiedUser inserts a new user or refreshes the OTP of an unverified,
// unblocked one. It reports false when the email already belongs to a verified
// or blocked account, in which case nothing is written.
func (s *Store) UpsertUnverifiedUser(ctx context.Context, reg PendingRegistration) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO users (name, email, password, otp, otp_expiry, otp_last_sent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password = EXCLUDED.password,
			otp = EXCLUDED.otp,
			otp_expiry = EXCLUDED.otp_expiry,
			otp_last_sent = EXCLUDED.otp_last_sent,
			otp_attempts = 0
		WHERE users.is_verified = FALSE AND users.is_blocked = FALSE
		RETURNING id`

	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, query,
		reg.Name, reg.Email, reg.PasswordHash, reg.OTPHash, reg.OTPExpiry, reg.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// UpdateUserSecurity locks the user's row, hands it to fn and, when fn returns
// true, saves the verification and lockout fields fn left on the user. The
// read and the write happen in one transaction.
func (s *Store) UpdateUserSecurity(ctx context.Context, email string, fn func(u *models.User) bool) (*models.User, error) {
	var user models.User
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user,
			"SELECT "+userColumns+" FROM users WHERE email = $1 FOR UPDATE", email)
		if err != nil {
			return notFound(err)
		}

		if !fn(&user) {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE users SET
				is_verified = $1,
				otp = $2,
				otp_expiry = $3,
				otp_attempts = $4,
				is_blocked = $5,
				login_attempts = $6,
				last_login_attempt = $7
			WHERE id = $8`,
			user.IsVerified, user.OTP, user.OTPExpiry, user.OTPAttempts,
			user.IsBlocked, user.LoginAttempts, user.LastLoginAttempt, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetResetToken stores (or with nil values clears) the hashed password reset token
func (s *Store) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash *string, expire *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET reset_password_token = $1, reset_password_expire = $2 WHERE id = $3",
		tokenHash, expire, userID)
	return err
}

// GetUserByResetToken finds the user holding an unexpired reset token hash
func (s *Store) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT "+userColumns+" FROM users WHERE reset_password_token = $1 AND reset_password_expire > NOW()",
		tokenHash)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ResetPassword sets a new password hash and consumes the reset token
func (s *Store) ResetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		UPDATE users SET password = $1, reset_password_token = NULL, reset_password_expire = NULL
		WHERE id = $2
		RETURNING `+userColumns, passwordHash, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdatePassword sets a new password hash
func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password = $1 WHERE id = $2", passwordHash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile sets name and email, and the avatar when one is given
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string, avatar *models.Image) (*models.User, error) {
	var user models.User
	var err error
	if avatar == nil {
		err = s.db.GetContext(ctx, &user,
			"UPDATE users SET name = $1, email = $2 WHERE id = $3 RETURNING "+userColumns,
			name, email, userID)
	} else {
		err = s.db.GetContext(ctx, &user,
			"UPDATE users SET name = $1, email = $2, avatar = $3 WHERE id = $4 RETURNING "+userColumns,
			name, email, *avatar, userID)
	}
	if err != nil {
		return nil, duplicate(notFound(err))
	}
	return &user, nil
}

// ListUsers returns a page of users with the given role, newest first, and the role's total
func (s *Store) ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users WHERE role = $1", role); err != nil {
		return nil, 0, err
	}

	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		role, limit, offset)
	return users, total, err
}

// DeleteUser removes a user and returns the deleted row
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "DELETE FROM users WHERE id = $1 RETURNING "+userColumns, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
