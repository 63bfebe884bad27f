package api

import (
	"net/http"

	"ecommerce-api/internal/apperr"

	"github.com/gin-gonic/gin"
)

// paymentWebhook verifies the signature over the untouched request body
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperr.Validation("Webhook Error: %s", err.Error()))
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
