package store

import (
	"context"
	"fmt"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const recomputeRatings = `
	UPDATE products
	SET ratings = COALESCE((SELECT AVG(rating) FROM reviews WHERE product_id = $1), 0)
	WHERE id = $1
	RETURNING ` + productColumns

// HasPaidPurchase reports whether the user bought the product in a paid order
func (s *Store) HasPaidPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			JOIN payments pay ON pay.order_id = o.id
			WHERE o.buyer_id = $1 AND oi.product_id = $2 AND pay.payment_status = 'Paid'
		)`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// UpsertReview writes the user's review of a product and recomputes the
// product rating in the same transaction
func (s *Store) UpsertReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*models.Review, *models.Product, error) {
	var review models.Review
	var product models.Product

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &review, `
			INSERT INTO reviews (product_id, user_id, rating, comment)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, user_id) DO UPDATE SET
				rating = EXCLUDED.rating,
				comment = EXCLUDED.comment
			RETURNING id, product_id, user_id, rating, comment, created_at`,
			productID, userID, rating, comment)
		if err != nil {
			return fmt.Errorf("upsert review: %w", err)
		}

		if err := tx.GetContext(ctx, &product, recomputeRatings, productID); err != nil {
			return notFound(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &review, &product, nil
}

// DeleteReview removes the user's review of a product and recomputes the rating.
// It returns ErrNotFound when the user has no review on the product.
func (s *Store) DeleteReview(ctx context.Context, productID, userID uuid.UUID) (*models.Product, error) {
	var product models.Product

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM reviews WHERE product_id = $1 AND user_id = $2", productID, userID)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		if err := tx.GetContext(ctx, &product, recomputeRatings, productID); err != nil {
			return notFound(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}
