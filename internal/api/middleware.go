package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecommerce-api/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const rateWindow = time.Minute

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token, err := c.Cookie(sessionCookie); err == nil {
		return token
	}
	return ""
}

// authenticate loads the session user into the request context
func (h *Handler) authenticate(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		h.respondError(c, apperr.Auth("Please login to access this resource"))
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Set(userContextKey, user)
	c.Next()
}

// requireRole rejects users outside roles. Runs after authenticate.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			fail(c, http.StatusUnauthorized, "Please login to access this resource")
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		fail(c, http.StatusForbidden, fmt.Sprintf("Role: %s is not allowed to access this resource", user.Role))
	}
}

// rateLimit throttles requests per client IP. It fails open when the
// limiter is unavailable.
func (h *Handler) rateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := h.opts.RateLimitPerMinute
		if h.opts.Limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		count, ttl, err := h.opts.Limiter.Hit(c.Request.Context(), scope+":"+c.ClientIP(), rateWindow)
		if err != nil {
			h.logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			h.respondError(c, apperr.RateLimited("Too many requests. Please try again later."))
			return
		}
		c.Next()
	}
}
