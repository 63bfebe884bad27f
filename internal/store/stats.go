package store

import (
	"context"
	"fmt"
	"time"

	"ecommerce-api/internal/models"

	"github.com/shopspring/decimal"
)

// RevenueBetween sums order totals created in [from, to)
func (s *Store) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE created_at >= $1 AND created_at < $2",
		from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

// TotalRevenue sums the totals of every order
func (s *Store) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.db.GetContext(ctx, &total, "SELECT COALESCE(SUM(total_price), 0) FROM orders"); err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

// CountUsers counts users with the role, created at or after since when it is non-zero
func (s *Store) CountUsers(ctx context.Context, role string, since time.Time) (int64, error) {
	var n int64
	var err error
	if since.IsZero() {
		err = s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE role = $1", role)
	} else {
		err = s.db.GetContext(ctx, &n,
			"SELECT COUNT(*) FROM users WHERE role = $1 AND created_at >= $2", role, since)
	}
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// OrderStatusCounts counts orders per status, with every status present
func (s *Store) OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus `db:"order_status"`
		Count  int64              `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT order_status, COUNT(*) AS count FROM orders GROUP BY order_status"); err != nil {
		return nil, fmt.Errorf("count order statuses: %w", err)
	}

	counts := make(map[models.OrderStatus]int64, len(models.OrderStatuses))
	for _, status := range models.OrderStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// MonthlySales totals orders per calendar month, oldest first
func (s *Store) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	sales := []models.MonthlySales{}
	err := s.db.SelectContext(ctx, &sales, `
		SELECT TO_CHAR(DATE_TRUNC('month', created_at), 'Mon YYYY') AS month,
			SUM(total_price) AS total_sales
		FROM orders
		GROUP BY DATE_TRUNC('month', created_at)
		ORDER BY DATE_TRUNC('month', created_at) ASC`)
	if err != nil {
		return nil, fmt.Errorf("monthly sales: %w", err)
	}
	return sales, nil
}

// TopSellingProducts ranks products by total quantity ordered
func (s *Store) TopSellingProducts(ctx context.Context, limit int) ([]models.TopSeller, error) {
	sellers := []models.TopSeller{}
	err := s.db.SelectContext(ctx, &sellers, `
		SELECT p.name, p.images->0->>'url' AS image, p.category, p.ratings,
			SUM(oi.quantity) AS total_sold
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		GROUP BY p.id, p.name, p.images, p.category, p.ratings
		ORDER BY total_sold DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top sellers: %w", err)
	}
	return sellers, nil
}

// LowStockProducts lists products with at most threshold units left, lowest first
func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]models.LowStock, error) {
	products := []models.LowStock{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT name, stock FROM products WHERE stock <= $1 ORDER BY stock ASC", threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return products, nil
}
