package api

import (
	"context"
	"io"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/service"

	"github.com/google/uuid"
)

// Authenticator covers account and session operations
type Authenticator interface {
	Register(ctx context.Context, req service.RegisterRequest) (string, error)
	VerifyEmail(ctx context.Context, email, code string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	ForgotPassword(ctx context.Context, email, frontendURL string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (*service.Session, error)
	UpdatePassword(ctx context.Context, user *models.User, req service.UpdatePasswordRequest) error
	UpdateProfile(ctx context.Context, user *models.User, name, email string, avatar io.Reader) (*models.User, error)
}

// Catalog covers products and reviews
type Catalog interface {
	CreateProduct(ctx context.Context, admin *models.User, form service.ProductForm, files []io.Reader) (*models.Product, error)
	ListProducts(ctx context.Context, q service.ListProductsQuery) (*service.ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, form service.ProductForm) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	PostReview(ctx context.Context, user *models.User, productID uuid.UUID, req service.PostReviewRequest) (*models.Review, *models.Product, error)
	DeleteReview(ctx context.Context, user *models.User, productID uuid.UUID) (*models.Product, error)
	AISearch(ctx context.Context, prompt string) (*service.AISearchResult, error)
}

// Orders covers order placement and management
type Orders interface {
	PlaceOrder(ctx context.Context, buyer *models.User, req service.PlaceOrderRequest) (*service.PlaceOrderResponse, error)
	GetOrder(ctx context.Context, user *models.User, id uuid.UUID) (*models.OrderDetails, error)
	ListMyOrders(ctx context.Context, user *models.User) ([]models.OrderDetails, error)
	ListAllOrders(ctx context.Context) ([]models.OrderDetails, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// Payments consumes provider webhooks
type Payments interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Admin covers the dashboard and user management
type Admin interface {
	DashboardStats(ctx context.Context) (*service.DashboardStats, error)
	ListUsers(ctx context.Context, page int) (*service.UserPage, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// RateLimiter counts hits against a key in a fixed window
type RateLimiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}
