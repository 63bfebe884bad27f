package api

import (
	"net/http"

	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listUsers(c *gin.Context) {
	page, err := h.admin.ListUsers(c.Request.Context(), pageQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		*service.UserPage
	}{ok(""), page})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, err := uuidParam(c, "id", "user")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok("User deleted successfully"))
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.admin.DashboardStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		*service.DashboardStats
	}{ok("Dashboard stats fetched successfully"), stats})
}
