package service

import (
	"context"
	"io"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/redisclient"
	"ecommerce-api/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserStore is the persistence the auth flows need
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertUnverifiedUser(ctx context.Context, reg store.PendingRegistration) (uuid.UUID, bool, error)
	UpdateUserSecurity(ctx context.Context, email string, fn func(u *models.User) bool) (*models.User, error)
	SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash *string, expire *time.Time) error
	GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error)
	ResetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string, avatar *models.Image) (*models.User, error)
}

// CatalogStore is the persistence behind products and reviews
type CatalogStore interface {
	CreateProduct(ctx context.Context, in store.ProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in store.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter, limit, offset int) ([]models.ProductListing, int64, error)
	NewProducts(ctx context.Context, limit int) ([]models.ProductListing, error)
	TopRatedProducts(ctx context.Context, limit int) ([]models.ProductListing, error)
	GetProductReviews(ctx context.Context, productID uuid.UUID) ([]models.ReviewView, error)
	SearchProductsByKeywords(ctx context.Context, patterns []string, limit int) ([]models.Product, error)
	HasPaidPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	UpsertReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*models.Review, *models.Product, error)
	DeleteReview(ctx context.Context, productID, userID uuid.UUID) (*models.Product, error)
}

// OrderStore is the persistence behind order placement and reads
type OrderStore interface {
	InOrderTx(ctx context.Context, fn func(tx store.OrderTx) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderDetails(ctx context.Context, id uuid.UUID) (*models.OrderDetails, error)
	ListOrderDetails(ctx context.Context, buyerID *uuid.UUID) ([]models.OrderDetails, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// PaymentStore applies a confirmed payment
type PaymentStore interface {
	InPaymentTx(ctx context.Context, fn func(tx store.PaymentTx) error) error
}

// AdminStore is the persistence behind the dashboard and user administration
type AdminStore interface {
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
	CountUsers(ctx context.Context, role string, since time.Time) (int64, error)
	OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error)
	MonthlySales(ctx context.Context) ([]models.MonthlySales, error)
	TopSellingProducts(ctx context.Context, limit int) ([]models.TopSeller, error)
	LowStockProducts(ctx context.Context, threshold int) ([]models.LowStock, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, int64, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EventPublisher emits domain events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishEmailRequested(ctx context.Context, event *models.EmailRequestedEvent) error
}

// PaymentGateway is the payment provider
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount int64, orderID string) (*provider.PaymentIntent, error)
}

// WebhookVerifier authenticates provider webhooks
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error)
}

// ImageStore holds uploaded images
type ImageStore interface {
	Upload(ctx context.Context, file io.Reader, folder string, width int) (models.Image, error)
	Destroy(ctx context.Context, publicID string) error
}

// ProductRanker orders candidate products against a free-text request
type ProductRanker interface {
	Rank(ctx context.Context, prompt string, products []models.Product) ([]models.Product, error)
}

// Cache stores JSON values with a ttl
type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// Locker hands out short-lived distributed locks
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (*redisclient.Lock, error)
	ReleaseLock(ctx context.Context, lock *redisclient.Lock) error
}

// SecretStore keeps one-time codes and reset links out of the event stream
// until the notification worker renders them.
type SecretStore interface {
	PutSecret(ctx context.Context, ref, secret string, ttl time.Duration) error
	GetSecret(ctx context.Context, ref string) (string, error)
	DeleteSecret(ctx context.Context, ref string) error
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}
