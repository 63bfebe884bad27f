package store

import (
	"context"
	"fmt"
	"strings"

	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, description, price, category, stock, images, ratings, created_by, created_at"

// Availability tiers accepted by ListProducts
const (
	AvailabilityInStock    = "in-stock"
	AvailabilityLimited    = "limited"
	AvailabilityOutOfStock = "out-of-stock"
)

// ProductFilter narrows a product listing. Zero values disable a predicate.
type ProductFilter struct {
	Availability string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Category     string
	MinRatings   *decimal.Decimal
	Search       string
}

// ProductInput holds the writable product fields
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Images      models.Images
	CreatedBy   *uuid.UUID
}

func qualify(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

// buildProductFilter turns a filter into a WHERE clause over alias p with
// numbered placeholders starting at $1. Only allow-listed predicates are emitted.
func buildProductFilter(f ProductFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Availability {
	case AvailabilityInStock:
		conditions = append(conditions, "p.stock > 5")
	case AvailabilityLimited:
		conditions = append(conditions, "p.stock > 0 AND p.stock <= 5")
	case AvailabilityOutOfStock:
		conditions = append(conditions, "p.stock = 0")
	}

	if f.MinPrice != nil && f.MaxPrice != nil {
		low := next(*f.MinPrice)
		high := next(*f.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("p.price BETWEEN %s AND %s", low, high))
	}

	if f.Category != "" {
		conditions = append(conditions, "p.category ILIKE "+next("%"+f.Category+"%"))
	}

	if f.MinRatings != nil {
		conditions = append(conditions, "p.ratings >= "+next(*f.MinRatings))
	}

	if f.Search != "" {
		ph := next("%" + f.Search + "%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", ph, ph))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		INSERT INTO products (name, description, price, category, stock, images, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.Category, in.Stock, in.Images, in.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &product, nil
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// UpdateProduct rewrites the scalar product fields. Images are left untouched.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET name = $1, description = $2, price = $3, category = $4, stock = $5
		WHERE id = $6
		RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.Category, in.Stock, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// DeleteProduct removes a product and returns the deleted row
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "DELETE FROM products WHERE id = $1 RETURNING "+productColumns, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// ListProducts returns one page of filtered products, newest first, and the filtered total
func (s *Store) ListProducts(ctx context.Context, f ProductFilter, limit, offset int) ([]models.ProductListing, int64, error) {
	where, args := buildProductFilter(f)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products p "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(r.id) AS review_count
		FROM products p
		LEFT JOIN reviews r ON r.product_id = p.id
		%s
		GROUP BY p.id
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		qualify("p", productColumns), where, len(args)+1, len(args)+2)

	products := []models.ProductListing{}
	if err := s.db.SelectContext(ctx, &products, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// NewProducts returns up to limit products created in the last 30 days
func (s *Store) NewProducts(ctx context.Context, limit int) ([]models.ProductListing, error) {
	products := []models.ProductListing{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+qualify("p", productColumns)+`, COUNT(r.id) AS review_count
		FROM products p
		LEFT JOIN reviews r ON r.product_id = p.id
		WHERE p.created_at >= NOW() - INTERVAL '30 days'
		GROUP BY p.id
		ORDER BY p.created_at DESC
		LIMIT $1`, limit)
	return products, err
}

// TopRatedProducts returns up to limit products rated 4.5 or higher
func (s *Store) TopRatedProducts(ctx context.Context, limit int) ([]models.ProductListing, error) {
	products := []models.ProductListing{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+qualify("p", productColumns)+`, COUNT(r.id) AS review_count
		FROM products p
		LEFT JOIN reviews r ON r.product_id = p.id
		WHERE p.ratings >= 4.5
		GROUP BY p.id
		ORDER BY p.ratings DESC, p.created_at DESC
		LIMIT $1`, limit)
	return products, err
}

type reviewRow struct {
	ReviewID       uuid.UUID     `db:"review_id"`
	Rating         int           `db:"rating"`
	Comment        string        `db:"comment"`
	ReviewerID     uuid.UUID     `db:"reviewer_id"`
	ReviewerName   string        `db:"reviewer_name"`
	ReviewerAvatar *models.Image `db:"reviewer_avatar"`
}

// GetProductReviews lists the reviews of a product with their authors, newest first
func (s *Store) GetProductReviews(ctx context.Context, productID uuid.UUID) ([]models.ReviewView, error) {
	var rows []reviewRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.id AS review_id, r.rating, r.comment,
			u.id AS reviewer_id, u.name AS reviewer_name, u.avatar AS reviewer_avatar
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews := make([]models.ReviewView, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, models.ReviewView{
			ReviewID: row.ReviewID,
			Rating:   row.Rating,
			Comment:  row.Comment,
			Reviewer: models.Reviewer{ID: row.ReviewerID, Name: row.ReviewerName, Avatar: row.ReviewerAvatar},
		})
	}
	return reviews, nil
}

// SearchProductsByKeywords matches ILIKE patterns against name, description and category
func (s *Store) SearchProductsByKeywords(ctx context.Context, patterns []string, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE ANY($1) OR description ILIKE ANY($1) OR category ILIKE ANY($1)
		LIMIT $2`, pq.Array(patterns), limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}
