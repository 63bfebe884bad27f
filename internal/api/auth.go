package api

import (
	"errors"
	"io"
	"net/http"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
)

var errInvalidBody = apperr.Validation("Invalid request body")

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type profileForm struct {
	Name  string `form:"name" json:"name"`
	Email string `form:"email" json:"email"`
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	message, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok(message))
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	session, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendSession(c, session, "Verification successful")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendSession(c, session, "Login successful")
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    currentUser(c),
	})
}

func (h *Handler) logout(c *gin.Context) {
	clearSession(c)
	c.JSON(http.StatusOK, ok("Logged out successfully"))
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email, c.Query("frontendUrl")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok("Password reset email sent to your mail"))
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	session, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendSession(c, session, "Password reset successfull")
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req service.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), currentUser(c), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok("Password updated successfully"))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	var avatar io.Reader
	header, err := c.FormFile("avatar")
	switch {
	case err == nil:
		file, openErr := header.Open()
		if openErr != nil {
			h.respondError(c, apperr.Validation("Could not read avatar"))
			return
		}
		defer file.Close()
		avatar = file
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.respondError(c, apperr.Validation("Could not read avatar"))
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), form.Name, form.Email, avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}
