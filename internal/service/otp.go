package service

import (
	"crypto/subtle"
	"time"

	"ecommerce-api/internal/models"
)

const (
	maxOTPAttempts   = 5
	maxLoginAttempts = 5
	otpDigits        = 6
	otpTTL           = 10 * time.Minute
	otpCooldown      = 2 * time.Minute
	resetTokenBytes  = 20
	resetTokenTTL    = 10 * time.Minute
)

// OTPOutcome is the result of one email verification attempt
type OTPOutcome int

const (
	OTPVerified OTPOutcome = iota
	OTPAlreadyVerified
	OTPBlocked
	OTPInvalid
	OTPExpired
	OTPJustBlocked
)

// EvaluateOTP applies one verification attempt with the hashed code to u
// and reports the outcome and whether u was modified.
func EvaluateOTP(u *models.User, codeHash string, now time.Time) (OTPOutcome, bool) {
	if u.IsVerified {
		return OTPAlreadyVerified, false
	}
	if u.IsBlocked {
		return OTPBlocked, false
	}

	expired := u.OTPExpiry == nil || !now.Before(*u.OTPExpiry)
	matches := u.OTP != nil && subtle.ConstantTimeCompare([]byte(*u.OTP), []byte(codeHash)) == 1

	if matches && !expired && u.OTPAttempts < maxOTPAttempts {
		u.IsVerified = true
		u.OTP = nil
		u.OTPExpiry = nil
		u.OTPAttempts = 0
		return OTPVerified, true
	}

	u.OTPAttempts++
	if u.OTPAttempts >= maxOTPAttempts {
		u.OTPAttempts = maxOTPAttempts
		u.IsBlocked = true
		return OTPJustBlocked, true
	}
	if expired {
		return OTPExpired, true
	}
	return OTPInvalid, true
}

// LoginOutcome is the result of one login attempt
type LoginOutcome int

const (
	LoginOK LoginOutcome = iota
	LoginBlocked
	LoginUnverified
	LoginInvalid
	LoginJustBlocked
)

// EvaluateLogin applies one login attempt to u. matches is consulted only
// for accounts allowed to log in.
func EvaluateLogin(u *models.User, matches func(hash string) bool, now time.Time) (LoginOutcome, bool) {
	if u.IsBlocked {
		return LoginBlocked, false
	}
	if !u.IsVerified {
		return LoginUnverified, false
	}

	u.LastLoginAttempt = &now
	if matches(u.Password) {
		u.LoginAttempts = 0
		return LoginOK, true
	}

	u.LoginAttempts++
	if u.LoginAttempts >= maxLoginAttempts {
		u.LoginAttempts = maxLoginAttempts
		u.IsBlocked = true
		return LoginJustBlocked, true
	}
	return LoginInvalid, true
}
