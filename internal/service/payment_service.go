package service

import (
	"context"
	"fmt"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const webhookLockTTL = 30 * time.Second

// PaymentService applies payment provider webhooks
type PaymentService struct {
	store    PaymentStore
	verifier WebhookVerifier
	locker   Locker
	events   EventPublisher
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, verifier WebhookVerifier, locker Locker, events EventPublisher) *PaymentService {
	return &PaymentService{
		store:    store,
		verifier: verifier,
		locker:   locker,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// HandleWebhook verifies a webhook delivery and, for a succeeded payment
// intent, marks the payment paid and takes the ordered stock. Replays of the
// same event or of an already paid intent change nothing.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := s.verifier.VerifyWebhook(payload, signature)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		return apperr.Validation("Webhook Error: %s", err.Error())
	}
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("event_type", event.Type))

	if event.Type != provider.EventPaymentIntentSucceeded {
		util.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	lock, err := s.locker.AcquireLock(ctx, "webhook:"+event.ID, webhookLockTTL)
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to lock webhook event: %w", err))
	}
	if lock == nil {
		// another delivery of this event is being applied; a non-2xx makes the
		// provider deliver again in case that one fails
		util.WebhookEventsTotal.WithLabelValues("in_progress").Inc()
		return apperr.Conflict("Event %s is already being processed", event.ID)
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lock); err != nil {
			s.logger.Warn("Failed to release webhook lock", zap.String("event_id", event.ID), zap.Error(err))
		}
	}()

	var (
		paid       *models.Payment
		duplicate  bool
		shortfalls int
	)
	err = s.store.InPaymentTx(ctx, func(tx store.PaymentTx) error {
		fresh, err := tx.MarkEventProcessed(ctx, event.ID, event.Type)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}

		payment, updated, err := tx.MarkPaymentPaid(ctx, event.IntentID, event.ClientSecret)
		if err != nil {
			return err
		}
		if !updated {
			duplicate = true
			return nil
		}

		if err := tx.StampOrderPaid(ctx, payment.OrderID); err != nil {
			return err
		}
		items, err := tx.OrderItems(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			ok, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				shortfalls++
				util.StockShortfallsTotal.Inc()
				s.logger.Error("Insufficient stock for paid order item",
					zap.String("order_id", payment.OrderID.String()),
					zap.String("product_id", item.ProductID.String()),
					zap.Int("quantity", item.Quantity))
			}
		}
		paid = payment
		return nil
	})
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("failed").Inc()
		return util.RecordError(span, fmt.Errorf("failed to apply payment: %w", err))
	}

	if duplicate {
		util.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Webhook event already applied",
			zap.String("event_id", event.ID),
			zap.String("payment_intent_id", event.IntentID))
		return nil
	}

	util.WebhookEventsTotal.WithLabelValues("applied").Inc()
	util.PaymentsPaidTotal.Inc()
	s.logger.Info("Payment confirmed",
		zap.String("order_id", paid.OrderID.String()),
		zap.String("payment_intent_id", paid.PaymentIntentID),
		zap.Int("stock_shortfalls", shortfalls))

	evt := &models.OrderPaidEvent{
		BaseEvent:       models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:         paid.OrderID,
		PaymentIntentID: paid.PaymentIntentID,
	}
	if err := s.events.PublishOrderPaid(ctx, evt); err != nil {
		s.logger.Error("Failed to publish order paid event",
			zap.String("order_id", paid.OrderID.String()),
			zap.Error(err))
	}
	return nil
}
