package service

import (
	"testing"
	"time"

	"ecommerce-api/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []PriceLine
		tax      string
		shipping string
		total    string
	}{
		{"small cart pays shipping", []PriceLine{{dec("10"), 2}, {dec("5"), 1}}, "4.5", "1.99", "31"},
		{"free shipping at fifty", []PriceLine{{dec("25"), 2}}, "9", "0", "59"},
		{"rounds to a whole unit", []PriceLine{{dec("0.35"), 1}}, "0.06", "1.99", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.lines)
			assert.True(t, dec(tt.tax).Equal(got.Tax), "tax %s", got.Tax)
			assert.True(t, dec(tt.shipping).Equal(got.Shipping), "shipping %s", got.Shipping)
			assert.True(t, dec(tt.total).Equal(got.Total), "total %s", got.Total)
		})
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(3100), MinorUnits(dec("31")))
	assert.Equal(t, int64(1999), MinorUnits(dec("19.99")))
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"red", "runningshoes", "500"},
		ExtractKeywords("Show me the best RED running-shoes under 500 rs!"))
	assert.Empty(t, ExtractKeywords("please show me something good"))
	assert.Equal(t, []string{"%mug%"}, likePatterns([]string{"mug"}))
}

func TestEvaluateOTP(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)
	hash := "abc"

	t.Run("correct code verifies", func(t *testing.T) {
		u := &models.User{OTP: &hash, OTPExpiry: &future, OTPAttempts: 3}
		outcome, changed := EvaluateOTP(u, "abc", now)
		assert.Equal(t, OTPVerified, outcome)
		assert.True(t, changed)
		assert.True(t, u.IsVerified)
		assert.Nil(t, u.OTP)
		assert.Nil(t, u.OTPExpiry)
		assert.Zero(t, u.OTPAttempts)
	})

	t.Run("wrong code counts", func(t *testing.T) {
		u := &models.User{OTP: &hash, OTPExpiry: &future, OTPAttempts: 1}
		outcome, _ := EvaluateOTP(u, "nope", now)
		assert.Equal(t, OTPInvalid, outcome)
		assert.Equal(t, 2, u.OTPAttempts)
		assert.False(t, u.IsBlocked)
	})

	t.Run("expired code counts", func(t *testing.T) {
		u := &models.User{OTP: &hash, OTPExpiry: &past}
		outcome, _ := EvaluateOTP(u, "abc", now)
		assert.Equal(t, OTPExpired, outcome)
		assert.Equal(t, 1, u.OTPAttempts)
	})

	t.Run("fifth failure blocks", func(t *testing.T) {
		u := &models.User{OTP: &hash, OTPExpiry: &future, OTPAttempts: 4}
		outcome, _ := EvaluateOTP(u, "nope", now)
		assert.Equal(t, OTPJustBlocked, outcome)
		assert.True(t, u.IsBlocked)
		assert.Equal(t, maxOTPAttempts, u.OTPAttempts)
	})

	t.Run("blocked and verified accounts are untouched", func(t *testing.T) {
		blocked := &models.User{IsBlocked: true, OTPAttempts: 5}
		outcome, changed := EvaluateOTP(blocked, "abc", now)
		assert.Equal(t, OTPBlocked, outcome)
		assert.False(t, changed)

		verified := &models.User{IsVerified: true}
		outcome, changed = EvaluateOTP(verified, "abc", now)
		assert.Equal(t, OTPAlreadyVerified, outcome)
		assert.False(t, changed)
	})
}

func TestEvaluateLogin(t *testing.T) {
	now := time.Now()
	match := func(string) bool { return true }
	miss := func(string) bool { return false }

	u := &models.User{IsVerified: true, LoginAttempts: 2}
	outcome, changed := EvaluateLogin(u, match, now)
	assert.Equal(t, LoginOK, outcome)
	assert.True(t, changed)
	assert.Zero(t, u.LoginAttempts)
	assert.Equal(t, now, *u.LastLoginAttempt)

	u = &models.User{IsVerified: true, LoginAttempts: 4}
	outcome, _ = EvaluateLogin(u, miss, now)
	assert.Equal(t, LoginJustBlocked, outcome)
	assert.True(t, u.IsBlocked)

	outcome, changed = EvaluateLogin(&models.User{}, match, now)
	assert.Equal(t, LoginUnverified, outcome)
	assert.False(t, changed)

	outcome, changed = EvaluateLogin(&models.User{IsVerified: true, IsBlocked: true}, match, now)
	assert.Equal(t, LoginBlocked, outcome)
	assert.False(t, changed)
}
