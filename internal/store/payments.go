package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PaymentTx is the set of writes applied when a payment succeeds
type PaymentTx interface {
	// MarkEventProcessed records the provider event and reports false when
	// it had been recorded before.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	// MarkPaymentPaid flips a pending payment to paid and reports false when
	// no pending payment has that intent id or client secret.
	MarkPaymentPaid(ctx context.Context, intentID, clientSecret string) (*models.Payment, bool, error)
	StampOrderPaid(ctx context.Context, orderID uuid.UUID) error
	OrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	// DecrementStock lowers stock by quantity only when enough is left and
	// reports whether it did.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
}

type paymentTx struct {
	tx *sqlx.Tx
}

// InPaymentTx runs fn in a transaction. Any error from fn rolls back every write.
func (s *Store) InPaymentTx(ctx context.Context, fn func(tx PaymentTx) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&paymentTx{tx: tx})
	})
}

func (p *paymentTx) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := p.tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *paymentTx) MarkPaymentPaid(ctx context.Context, intentID, clientSecret string) (*models.Payment, bool, error) {
	var payment models.Payment
	err := p.tx.GetContext(ctx, &payment, `
		UPDATE payments SET payment_status = 'Paid'
		WHERE payment_status = 'Pending'
			AND (payment_intent_id = $1 OR ($2::text <> '' AND client_secret = $2))
		RETURNING id, order_id, payment_type, payment_status, payment_intent_id, client_secret, created_at`,
		intentID, clientSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mark payment paid: %w", err)
	}
	return &payment, true, nil
}

func (p *paymentTx) StampOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	_, err := p.tx.ExecContext(ctx, "UPDATE orders SET paid_at = NOW() WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("stamp order paid: %w", err)
	}
	return nil
}

func (p *paymentTx) OrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := p.tx.SelectContext(ctx, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1", orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return items, nil
}

func (p *paymentTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	res, err := p.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
