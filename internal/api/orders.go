package api

import (
	"net/http"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	resp, err := h.orders.PlaceOrder(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		PaymentIntent string          `json:"paymentIntent"`
		TotalPrice    decimal.Decimal `json:"total_price"`
	}{ok("Order placed successfully"), resp.ClientSecret, resp.Total.Total})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := uuidParam(c, "orderId", "order")
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Order *models.OrderDetails `json:"orders"`
	}{ok("Order fetched"), order})
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Orders []models.OrderDetails `json:"myOrders"`
	}{ok("All orders fetched"), nonNil(orders)})
}

func (h *Handler) allOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Orders []models.OrderDetails `json:"orders"`
	}{ok("All orders fetched"), nonNil(orders)})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, err := uuidParam(c, "orderId", "order")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidBody)
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, struct {
		envelope
		Order *models.Order `json:"updatedOrder"`
	}{ok("Order status updated"), order})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, err := uuidParam(c, "orderId", "order")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ok("Order deleted!"))
}

func nonNil(orders []models.OrderDetails) []models.OrderDetails {
	if orders == nil {
		return []models.OrderDetails{}
	}
	return orders
}
