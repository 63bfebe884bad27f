package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeEmailRequested = "EMAIL_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// OrderPlacedEvent published after an order and its payment intent are committed
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    uuid.UUID       `json:"order_id"`
	BuyerID    uuid.UUID       `json:"buyer_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItemData `json:"items"`
}

// OrderPaidEvent published when the payment webhook confirms an order
type OrderPaidEvent struct {
	BaseEvent
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
}

// Email templates the notification worker can render
const (
	EmailTemplateVerification  = "verification"
	EmailTemplatePasswordReset = "password_reset"
)

// EmailRequestedEvent asks the notification worker to send an email. The code
// or link it carries lives under SecretRef in the secret store, not in the event.
type EmailRequestedEvent struct {
	BaseEvent
	To        string `json:"to"`
	Template  string `json:"template"`
	SecretRef string `json:"secret_ref"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
