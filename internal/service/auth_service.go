package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/security"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Messages returned for outcomes that are not errors
const (
	MsgAlreadyRegistered = "User already registered. Please log in."
	MsgOTPSent           = "If this email is eligible, an OTP has been sent."
)

// AuthService handles registration, verification, sessions and passwords
type AuthService struct {
	users          UserStore
	events         EventPublisher
	secrets        SecretStore
	images         ImageStore
	tokens         *security.TokenIssuer
	allowedOrigins []string
	now            func() time.Time
	logger         *zap.Logger
}

// NewAuthService creates a new auth service. Password reset links are only
// built against allowedOrigins; the first one is the default.
func NewAuthService(
	users UserStore,
	events EventPublisher,
	secrets SecretStore,
	images ImageStore,
	tokens *security.TokenIssuer,
	allowedOrigins []string,
) *AuthService {
	return &AuthService{
		users:          users,
		events:         events,
		secrets:        secrets,
		images:         images,
		tokens:         tokens,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// Session is an authenticated user with a signed token
type Session struct {
	User  *models.User
	Token string
}

// RegisterRequest is the registration form
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var validate = validator.New()

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts a bare address only, never a display name form
func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func validatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < 6 || n > 16 {
		return apperr.Validation("Password must be between 6 and 16 characters")
	}
	return nil
}

// Register creates or refreshes an unverified account and emails it a one-time code.
// The returned message is shown to the caller on success.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return "", apperr.Validation("Please provide all required fields")
	}
	if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
		return "", apperr.Validation("Name must be between 3 and 30 characters")
	}
	if !validEmail(email) {
		return "", apperr.Validation("Please provide a valid email")
	}
	if err := validatePassword(req.Password); err != nil {
		return "", err
	}

	now := s.now()
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return "", util.RecordError(span, fmt.Errorf("failed to look up user: %w", err))
	case existing.IsVerified:
		return MsgAlreadyRegistered, nil
	case existing.IsBlocked:
		return MsgOTPSent, nil
	case existing.OTPLastSent != nil && now.Sub(*existing.OTPLastSent) < otpCooldown:
		return "", apperr.RateLimited("Please wait before requesting another OTP")
	}

	code, err := security.NumericCode(otpDigits)
	if err != nil {
		return "", util.RecordError(span, err)
	}
	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		return "", util.RecordError(span, err)
	}

	userID, written, err := s.users.UpsertUnverifiedUser(ctx, store.PendingRegistration{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		OTPHash:      security.Digest(code),
		OTPExpiry:    now.Add(otpTTL),
		SentAt:       now,
	})
	if err != nil {
		return "", util.RecordError(span, fmt.Errorf("failed to save registration: %w", err))
	}
	if !written {
		return MsgAlreadyRegistered, nil
	}
	span.SetAttributes(attribute.String("user_id", userID.String()))

	if err := s.requestEmail(ctx, email, models.EmailTemplateVerification, code, otpTTL); err != nil {
		return "", apperr.Upstream(err, "Verification email could not be sent")
	}

	util.UsersRegisteredTotal.Inc()
	s.logger.Info("Verification code issued", zap.String("user_id", userID.String()))
	return MsgOTPSent, nil
}

// VerifyEmail checks a one-time code and, when it matches, verifies the account and opens a session
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperr.Validation("Please provide both email and OTP")
	}

	var outcome OTPOutcome
	user, err := s.users.UpdateUserSecurity(ctx, email, func(u *models.User) bool {
		var changed bool
		outcome, changed = EvaluateOTP(u, security.Digest(code), s.now())
		return changed
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to verify email: %w", err))
	}

	left := maxOTPAttempts - user.OTPAttempts
	switch outcome {
	case OTPAlreadyVerified:
		return nil, apperr.Validation("User already verified. Please log in.")
	case OTPBlocked:
		return nil, apperr.Forbidden("Account is blocked due to too many incorrect OTP attempts.")
	case OTPJustBlocked:
		util.AccountsBlockedTotal.WithLabelValues("otp").Inc()
		s.logger.Warn("Account blocked after failed verifications", zap.String("user_id", user.ID.String()))
		return nil, apperr.Forbidden("Too many failed attempts. Account blocked.")
	case OTPExpired:
		return nil, apperr.Validation("OTP has expired. %d attempts left.", left)
	case OTPInvalid:
		return nil, apperr.Validation("Invalid OTP. %d attempts left.", left)
	}

	util.UsersVerifiedTotal.Inc()
	return s.openSession(user)
}

// Login checks credentials with lockout after repeated failures
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Please provide both email and password")
	}

	var outcome LoginOutcome
	user, err := s.users.UpdateUserSecurity(ctx, email, func(u *models.User) bool {
		var changed bool
		outcome, changed = EvaluateLogin(u, func(hash string) bool {
			return security.CheckPassword(hash, password)
		}, s.now())
		return changed
	})
	if errors.Is(err, store.ErrNotFound) {
		util.LoginsTotal.WithLabelValues("unknown_user").Inc()
		return nil, apperr.Auth("Invalid email or password")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to log in: %w", err))
	}

	switch outcome {
	case LoginBlocked:
		util.LoginsTotal.WithLabelValues("blocked").Inc()
		return nil, apperr.Forbidden("Your account is blocked.")
	case LoginUnverified:
		util.LoginsTotal.WithLabelValues("unverified").Inc()
		return nil, apperr.Forbidden("Please verify your email before logging in")
	case LoginJustBlocked:
		util.LoginsTotal.WithLabelValues("invalid_password").Inc()
		util.AccountsBlockedTotal.WithLabelValues("login").Inc()
		s.logger.Warn("Account blocked after failed logins", zap.String("user_id", user.ID.String()))
		return nil, apperr.Forbidden("Too many failed login attempts. Your account is now blocked.")
	case LoginInvalid:
		util.LoginsTotal.WithLabelValues("invalid_password").Inc()
		return nil, apperr.Auth("Invalid email or password. %d attempts left.", maxLoginAttempts-user.LoginAttempts)
	}

	util.LoginsTotal.WithLabelValues("success").Inc()
	return s.openSession(user)
}

// Authenticate resolves a session token to its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Auth("Please login to access this resource")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Auth("Please login to access this resource")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsBlocked {
		return nil, apperr.Forbidden("Your account is blocked.")
	}
	return user, nil
}

// ForgotPassword issues a single-use reset token and emails the reset link.
// frontendURL picks the link host among the allowed origins.
func (s *AuthService) ForgotPassword(ctx context.Context, email, frontendURL string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("Please provide an email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to look up user: %w", err))
	}

	token, err := security.RandomToken(resetTokenBytes)
	if err != nil {
		return util.RecordError(span, err)
	}
	hash := security.Digest(token)
	expire := s.now().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, &hash, &expire); err != nil {
		return util.RecordError(span, fmt.Errorf("failed to save reset token: %w", err))
	}

	link := fmt.Sprintf("%s/password/reset/%s", s.resetOrigin(frontendURL), token)
	if err := s.requestEmail(ctx, user.Email, models.EmailTemplatePasswordReset, link, resetTokenTTL); err != nil {
		if clearErr := s.users.SetResetToken(ctx, user.ID, nil, nil); clearErr != nil {
			s.logger.Error("Failed to clear reset token", zap.Error(clearErr))
		}
		return apperr.Upstream(err, "Email could not be sent")
	}

	return nil
}

func (s *AuthService) resetOrigin(requested string) string {
	requested = strings.TrimRight(strings.TrimSpace(requested), "/")
	for _, o := range s.allowedOrigins {
		if strings.TrimRight(o, "/") == requested {
			return requested
		}
	}
	if len(s.allowedOrigins) > 0 {
		return strings.TrimRight(s.allowedOrigins[0], "/")
	}
	return requested
}

// ResetPassword consumes a reset token and sets a new password
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	user, err := s.users.GetUserByResetToken(ctx, security.Digest(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Validation("Invalid or expired reset token.")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to look up reset token: %w", err))
	}
	if user.IsBlocked {
		return nil, apperr.Forbidden("Your account is blocked.")
	}
	if !user.IsVerified {
		return nil, apperr.Forbidden("Please verify your email before logging in")
	}

	if password != confirm {
		return nil, apperr.Validation("Password and confirm password do not match")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	updated, err := s.users.ResetPassword(ctx, user.ID, hash)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to reset password: %w", err))
	}

	return s.openSession(updated)
}

// UpdatePasswordRequest is the change password form
type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// UpdatePassword changes the password of a logged in user
func (s *AuthService) UpdatePassword(ctx context.Context, user *models.User, req UpdatePasswordRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.UpdatePassword")
	defer span.End()

	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmNewPassword == "" {
		return apperr.Validation("Please provide all required fields.")
	}
	if user.IsBlocked {
		return apperr.Forbidden("Your account is blocked.")
	}
	if !security.CheckPassword(user.Password, req.CurrentPassword) {
		return apperr.Auth("Current password is incorrect")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return apperr.Validation("New password and confirm new password do not match")
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		return util.RecordError(span, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return util.RecordError(span, fmt.Errorf("failed to update password: %w", err))
	}
	return nil
}

// UpdateProfile changes name and email, replacing the avatar when one is uploaded
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, name, email string, avatar io.Reader) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.UpdateProfile")
	defer span.End()

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, apperr.Validation("Please provide all required fields")
	}
	if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
		return nil, apperr.Validation("Name must be between 3 and 30 characters")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("Please provide a valid email")
	}

	oldAvatar := user.Avatar
	var image *models.Image
	if avatar != nil {
		uploaded, err := s.images.Upload(ctx, avatar, provider.AvatarFolder, 150)
		if err != nil {
			return nil, apperr.Upstream(err, "Failed to upload avatar")
		}
		image = &uploaded
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, name, email, image)
	if err != nil {
		if image != nil {
			s.destroyImage(ctx, image.PublicID)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("Email is already in use")
		}
		return nil, util.RecordError(span, fmt.Errorf("failed to update profile: %w", err))
	}

	if image != nil && oldAvatar != nil && oldAvatar.PublicID != "" && oldAvatar.PublicID != image.PublicID {
		s.destroyImage(ctx, oldAvatar.PublicID)
	}
	return updated, nil
}

func (s *AuthService) destroyImage(ctx context.Context, publicID string) {
	if err := s.images.Destroy(ctx, publicID); err != nil {
		s.logger.Error("Failed to destroy image", zap.String("public_id", publicID), zap.Error(err))
	}
}

func (s *AuthService) openSession(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// requestEmail parks the secret in the short-lived store and publishes only a
// reference to it, so codes and links never reach the event log.
func (s *AuthService) requestEmail(ctx context.Context, to, template, secret string, ttl time.Duration) error {
	event := &models.EmailRequestedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeEmailRequested),
		To:        to,
		Template:  template,
		SecretRef: uuid.NewString(),
	}
	if err := s.secrets.PutSecret(ctx, event.SecretRef, secret, ttl); err != nil {
		return fmt.Errorf("failed to store email secret: %w", err)
	}
	if err := s.events.PublishEmailRequested(ctx, event); err != nil {
		if delErr := s.secrets.DeleteSecret(ctx, event.SecretRef); delErr != nil {
			s.logger.Error("Failed to drop email secret", zap.Error(delErr))
		}
		return err
	}
	return nil
}
