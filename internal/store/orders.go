package store

import (
	"context"
	"fmt"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	orderColumns     = "id, buyer_id, total_price, tax_price, shipping_price, order_status, paid_at, created_at"
	orderItemColumns = "id, order_id, product_id, quantity, price, image, title"
	shippingColumns  = "order_id, full_name, state, city, country, address, pincode, phone"
)

// LockedProduct is the slice of a product row read while placing an order
type LockedProduct struct {
	ID     uuid.UUID       `db:"id"`
	Name   string          `db:"name"`
	Price  decimal.Decimal `db:"price"`
	Stock  int             `db:"stock"`
	Images models.Images   `db:"images"`
}

// OrderTx is the set of writes that make up one order placement
type OrderTx interface {
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]LockedProduct, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItems(ctx context.Context, items []models.OrderItem) error
	InsertShippingInfo(ctx context.Context, info models.ShippingInfo) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
}

type orderTx struct {
	tx *sqlx.Tx
}

// InOrderTx runs fn in a transaction. Any error from fn rolls back every write.
func (s *Store) InOrderTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// LockProducts reads the given products with row locks, in id order
func (o *orderTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]LockedProduct, error) {
	var rows []LockedProduct
	err := o.tx.SelectContext(ctx, &rows, `
		SELECT id, name, price, stock, images
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	products := make(map[uuid.UUID]LockedProduct, len(rows))
	for _, p := range rows {
		products[p.ID] = p
	}
	return products, nil
}

func (o *orderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	err := o.tx.GetContext(ctx, order, `
		INSERT INTO orders (buyer_id, total_price, tax_price, shipping_price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		order.BuyerID, order.TotalPrice, order.TaxPrice, order.ShippingPrice)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertOrderItems writes all items in a single multi-row insert
func (o *orderTx) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := o.tx.NamedExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price, image, title)
		VALUES (:order_id, :product_id, :quantity, :price, :image, :title)`, items)
	if err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (o *orderTx) InsertShippingInfo(ctx context.Context, info models.ShippingInfo) error {
	_, err := o.tx.ExecContext(ctx, `
		INSERT INTO shipping_info (order_id, full_name, state, city, country, address, pincode, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		info.OrderID, info.FullName, info.State, info.City, info.Country,
		info.Address, info.Pincode, info.Phone)
	if err != nil {
		return fmt.Errorf("insert shipping info: %w", err)
	}
	return nil
}

func (o *orderTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	err := o.tx.GetContext(ctx, payment, `
		INSERT INTO payments (order_id, payment_type, payment_status, payment_intent_id, client_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, payment_type, payment_status, payment_intent_id, client_secret, created_at`,
		payment.OrderID, payment.PaymentType, payment.PaymentStatus,
		payment.PaymentIntentID, payment.ClientSecret)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// GetOrderDetails retrieves an order with its items and shipping record
func (s *Store) GetOrderDetails(ctx context.Context, id uuid.UUID) (*models.OrderDetails, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := s.attachDetails(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListOrderDetails returns orders newest first, only the buyer's when buyerID is set
func (s *Store) ListOrderDetails(ctx context.Context, buyerID *uuid.UUID) ([]models.OrderDetails, error) {
	var orders []models.Order
	var err error
	if buyerID != nil {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", *buyerID)
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.attachDetails(ctx, orders)
}

// attachDetails loads items and shipping for all orders with one query each
func (s *Store) attachDetails(ctx context.Context, orders []models.Order) ([]models.OrderDetails, error) {
	details := make([]models.OrderDetails, len(orders))
	if len(orders) == 0 {
		return details, nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		details[i] = models.OrderDetails{Order: o, Items: []models.OrderItem{}}
	}

	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY created_at",
		uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	for _, item := range items {
		i := index[item.OrderID]
		details[i].Items = append(details[i].Items, item)
	}

	var shipping []models.ShippingInfo
	err = s.db.SelectContext(ctx, &shipping,
		"SELECT "+shippingColumns+" FROM shipping_info WHERE order_id = ANY($1::uuid[])",
		uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("load shipping info: %w", err)
	}
	for i := range shipping {
		info := shipping[i]
		details[index[info.OrderID]].ShippingInfo = &info
	}

	return details, nil
}

// UpdateOrderStatus moves an order from one status to another. It returns
// ErrNotFound when the order is missing or no longer in the from status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"UPDATE orders SET order_status = $1 WHERE id = $2 AND order_status = $3 RETURNING "+orderColumns,
		to, id, from)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// DeleteOrder removes an order together with its items, shipping and payment
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
