package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	paymentTypeOnline = "Online"
	// paymentIntentTimeout bounds the provider call made while stock rows are locked
	paymentIntentTimeout = 10 * time.Second
)

// OrderService handles order business logic
type OrderService struct {
	store    OrderStore
	payments PaymentGateway
	events   EventPublisher
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, payments PaymentGateway, events EventPublisher) *OrderService {
	return &OrderService{
		store:    store,
		payments: payments,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// PlaceOrderRequest is the checkout form
type PlaceOrderRequest struct {
	FullName     string          `json:"full_name"`
	State        string          `json:"state"`
	City         string          `json:"city"`
	Country      string          `json:"country"`
	Address      string          `json:"address"`
	Pincode      string          `json:"pincode"`
	Phone        string          `json:"phone"`
	OrderedItems json.RawMessage `json:"orderedItems"`
}

// PlaceOrderResponse carries what the client needs to confirm payment
type PlaceOrderResponse struct {
	OrderID      uuid.UUID
	ClientSecret string
	Total        Totals
}

// OrderedItem is one requested product and quantity
type OrderedItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type orderedItemInput struct {
	Product *struct {
		ID string `json:"id"`
	} `json:"product"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ParseOrderedItems decodes the cart either as a JSON array or as a JSON
// string holding that array. Every line needs a quantity of at least 1;
// repeated products are then merged.
func ParseOrderedItems(raw json.RawMessage) ([]OrderedItem, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	if strings.HasPrefix(text, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, apperr.Validation("Invalid orderedItems")
		}
		text = strings.TrimSpace(inner)
		if text == "" {
			return nil, nil
		}
	}

	var inputs []orderedItemInput
	if err := json.Unmarshal([]byte(text), &inputs); err != nil {
		return nil, apperr.Validation("Invalid orderedItems")
	}

	var items []OrderedItem
	index := make(map[uuid.UUID]int, len(inputs))
	for _, in := range inputs {
		rawID := in.ProductID
		if in.Product != nil && in.Product.ID != "" {
			rawID = in.Product.ID
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, apperr.Validation("Invalid product id %q", rawID)
		}
		if in.Quantity < 1 {
			return nil, apperr.Validation("Quantity for product %s must be at least 1", id)
		}
		if i, ok := index[id]; ok {
			items[i].Quantity += in.Quantity
			continue
		}
		index[id] = len(items)
		items = append(items, OrderedItem{ProductID: id, Quantity: in.Quantity})
	}
	return items, nil
}

// PlaceOrder validates the cart against locked stock, writes the order with its
// items, shipping and payment rows, and opens a payment intent, all or nothing.
func (s *OrderService) PlaceOrder(ctx context.Context, buyer *models.User, req PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	shipping := models.ShippingInfo{
		FullName: strings.TrimSpace(req.FullName),
		State:    strings.TrimSpace(req.State),
		City:     strings.TrimSpace(req.City),
		Country:  strings.TrimSpace(req.Country),
		Address:  strings.TrimSpace(req.Address),
		Pincode:  strings.TrimSpace(req.Pincode),
		Phone:    strings.TrimSpace(req.Phone),
	}
	for _, v := range []string{shipping.FullName, shipping.State, shipping.City, shipping.Country,
		shipping.Address, shipping.Pincode, shipping.Phone} {
		if v == "" {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
			return nil, apperr.Validation("Please provide all shipping details.")
		}
	}

	items, err := ParseOrderedItems(req.OrderedItems)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	if len(items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, apperr.Validation("No items in cart to place order.")
	}

	var (
		order     models.Order
		payment   models.Payment
		totals    Totals
		eventData []models.OrderItemData
	)
	err = s.store.InOrderTx(ctx, func(tx store.OrderTx) error {
		ids := make([]uuid.UUID, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		lines := make([]PriceLine, 0, len(items))
		rows := make([]models.OrderItem, 0, len(items))
		eventData = eventData[:0]
		for _, item := range items {
			p, ok := products[item.ProductID]
			if !ok {
				util.OrdersFailedTotal.WithLabelValues("not_found").Inc()
				return apperr.NotFound("Product with id %s not found.", item.ProductID)
			}
			if item.Quantity < 1 {
				util.OrdersFailedTotal.WithLabelValues("validation").Inc()
				return apperr.Validation("Quantity for product %s must be at least 1", p.Name)
			}
			if item.Quantity > p.Stock {
				util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
				return apperr.Validation("Insufficient stock for product %s. Available: %d, Requested: %d",
					p.Name, p.Stock, item.Quantity)
			}
			lines = append(lines, PriceLine{Price: p.Price, Quantity: item.Quantity})
			rows = append(rows, models.OrderItem{
				ProductID: p.ID,
				Quantity:  item.Quantity,
				Price:     p.Price,
				Image:     p.Images.FirstURL(),
				Title:     p.Name,
			})
			eventData = append(eventData, models.OrderItemData{
				ProductID: p.ID,
				Quantity:  item.Quantity,
				Price:     p.Price,
			})
		}

		totals = ComputeTotals(lines)
		order = models.Order{
			BuyerID:       buyer.ID,
			TotalPrice:    totals.Total,
			TaxPrice:      totals.Tax,
			ShippingPrice: totals.Shipping,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}

		for i := range rows {
			rows[i].OrderID = order.ID
		}
		if err := tx.InsertOrderItems(ctx, rows); err != nil {
			return err
		}
		shipping.OrderID = order.ID
		if err := tx.InsertShippingInfo(ctx, shipping); err != nil {
			return err
		}

		start := time.Now()
		intentCtx, cancel := context.WithTimeout(ctx, paymentIntentTimeout)
		intent, err := s.payments.CreatePaymentIntent(intentCtx, MinorUnits(totals.Total), order.ID.String())
		cancel()
		util.PaymentIntentLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("payment").Inc()
			return apperr.Upstream(err, "payment failed, try again later")
		}

		payment = models.Payment{
			OrderID:         order.ID,
			PaymentType:     paymentTypeOnline,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("internal").Inc()
		return nil, util.RecordError(span, fmt.Errorf("failed to place order: %w", err))
	}

	span.SetAttributes(attribute.String("order_id", order.ID.String()))
	util.OrdersPlacedTotal.Inc()

	event := &models.OrderPlacedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:    order.ID,
		BuyerID:    buyer.ID,
		TotalPrice: order.TotalPrice,
		Items:      eventData,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish order placed event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyer.ID.String()),
		zap.String("total_price", order.TotalPrice.String()))

	return &PlaceOrderResponse{
		OrderID:      order.ID,
		ClientSecret: payment.ClientSecret,
		Total:        totals,
	}, nil
}

// GetOrder returns an order with its items and shipping. Only admins may read
// orders they did not place.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, id uuid.UUID) (*models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderDetails(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to get order: %w", err))
	}
	if user.Role != models.RoleAdmin && order.BuyerID != user.ID {
		return nil, apperr.NotFound("Order not found")
	}
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, user *models.User) ([]models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListMyOrders")
	defer span.End()

	orders, err := s.store.ListOrderDetails(ctx, &user.ID)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list orders: %w", err))
	}
	return orders, nil
}

// ListAllOrders returns every order
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	orders, err := s.store.ListOrderDetails(ctx, nil)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list orders: %w", err))
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along its fulfilment lifecycle
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.String("order_id", id.String()))
	defer span.End()

	if strings.TrimSpace(status) == "" {
		return nil, apperr.Validation("Please provide a valid status input")
	}
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("Invalid order status %q", status)
	}

	current, err := s.store.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to get order: %w", err))
	}
	if !current.OrderStatus.CanTransitionTo(next) {
		return nil, apperr.Validation("Cannot change order status from %s to %s", current.OrderStatus, next)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, id, current.OrderStatus, next)
	if errors.Is(err, store.ErrNotFound) {
		// status changed between the read and the write
		return nil, apperr.Validation("Order status changed concurrently, please retry")
	}
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to update order status: %w", err))
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("from", string(current.OrderStatus)),
		zap.String("to", string(next)))
	return updated, nil
}

// DeleteOrder removes an order and everything attached to it
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	err := s.store.DeleteOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Order not found")
	}
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to delete order: %w", err))
	}
	return nil
}
