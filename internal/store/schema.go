package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(100) NOT NULL CHECK (char_length(name) >= 3),
		email VARCHAR(255) UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role VARCHAR(10) NOT NULL DEFAULT 'User' CHECK (role IN ('User', 'Admin')),
		avatar JSONB,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		otp TEXT,
		otp_expiry TIMESTAMPTZ,
		otp_last_sent TIMESTAMPTZ,
		otp_attempts INT NOT NULL DEFAULT 0,
		is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
		login_attempts INT NOT NULL DEFAULT 0,
		last_login_attempt TIMESTAMPTZ,
		reset_password_token TEXT,
		reset_password_expire TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		category VARCHAR(100) NOT NULL,
		stock INT NOT NULL CHECK (stock >= 0),
		images JSONB NOT NULL DEFAULT '[]'::JSONB,
		ratings NUMERIC(3, 2) NOT NULL DEFAULT 0 CHECK (ratings BETWEEN 0 AND 5),
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (product_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		buyer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		total_price NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
		tax_price NUMERIC(12, 2) NOT NULL CHECK (tax_price >= 0),
		shipping_price NUMERIC(12, 2) NOT NULL CHECK (shipping_price >= 0),
		order_status VARCHAR(20) NOT NULL DEFAULT 'Processing'
			CHECK (order_status IN ('Processing', 'Shipped', 'Delivered', 'Cancelled')),
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INT NOT NULL CHECK (quantity > 0),
		price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		image TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS shipping_info (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
		full_name VARCHAR(100) NOT NULL,
		state VARCHAR(100) NOT NULL,
		city VARCHAR(100) NOT NULL,
		country VARCHAR(100) NOT NULL,
		address TEXT NOT NULL,
		pincode VARCHAR(20) NOT NULL,
		phone VARCHAR(20) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
		payment_type VARCHAR(20) NOT NULL DEFAULT 'Online',
		payment_status VARCHAR(20) NOT NULL DEFAULT 'Pending'
			CHECK (payment_status IN ('Pending', 'Paid')),
		payment_intent_id TEXT UNIQUE,
		client_secret TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer_id ON orders (buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_product_id ON reviews (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_created_at ON products (created_at DESC)`,
}

// Migrate creates every table and index that does not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
