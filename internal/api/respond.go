package api

import (
	"net/http"
	"strconv"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	internalMessage = "Internal Server Error"
	sessionCookie   = "token"
	userContextKey  = "user"
)

// envelope is the common response head, embedded in typed payloads
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(message string) envelope {
	return envelope{Success: true, Message: message}
}

// sessionUser is the user view returned with a fresh session
type sessionUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Name  string    `json:"name"`
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// respondError maps err to a status and a client-facing message.
// Causes of internal errors are logged, never returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	e, isApp := apperr.As(err)
	if !isApp || e.Kind == apperr.KindInternal {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		fail(c, http.StatusInternalServerError, internalMessage)
		return
	}

	if e.Kind == apperr.KindUpstream {
		h.logger.Error("Upstream provider failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	fail(c, e.Status(), e.Message)
}

// sendSession sets the session cookie and returns the user
func (h *Handler) sendSession(c *gin.Context, session *service.Session, message string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(sessionCookie, session.Token, int(h.opts.CookieTTL.Seconds()), "/", "", true, true)

	c.JSON(http.StatusOK, struct {
		envelope
		User sessionUser `json:"user"`
	}{
		envelope: ok(message),
		User: sessionUser{
			ID:    session.User.ID,
			Email: session.User.Email,
			Role:  session.User.Role,
			Name:  session.User.Name,
		},
	})
}

func clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", true, true)
}

func currentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(userContextKey); exists {
		if u, isUser := v.(*models.User); isUser {
			return u
		}
	}
	return nil
}

func uuidParam(c *gin.Context, name, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid %s id", what)
	}
	return id, nil
}

// pageQuery reads ?page, defaulting to 1
func pageQuery(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
