package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// prices and totals go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Roles
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Image is a reference to an asset held by the image store.
type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Value stores the image as JSONB.
func (i Image) Value() (driver.Value, error) {
	return json.Marshal(i)
}

// Scan reads a JSONB image.
func (i *Image) Scan(src interface{}) error {
	return scanJSON(src, i)
}

// Images is a JSONB array of image references.
type Images []Image

func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(im)
}

func (im *Images) Scan(src interface{}) error {
	if src == nil {
		*im = Images{}
		return nil
	}
	return scanJSON(src, im)
}

// FirstURL returns the url of the first image or "".
func (im Images) FirstURL() string {
	if len(im) == 0 {
		return ""
	}
	return im[0].URL
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON source type %T", src)
	}
}

// User represents an account
type User struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	Email               string     `db:"email" json:"email"`
	Password            string     `db:"password" json:"-"`
	Role                string     `db:"role" json:"role"`
	Avatar              *Image     `db:"avatar" json:"avatar"`
	IsVerified          bool       `db:"is_verified" json:"is_verified"`
	OTP                 *string    `db:"otp" json:"-"`
	OTPExpiry           *time.Time `db:"otp_expiry" json:"-"`
	OTPLastSent         *time.Time `db:"otp_last_sent" json:"-"`
	OTPAttempts         int        `db:"otp_attempts" json:"-"`
	IsBlocked           bool       `db:"is_blocked" json:"is_blocked"`
	LoginAttempts       int        `db:"login_attempts" json:"-"`
	LastLoginAttempt    *time.Time `db:"last_login_attempt" json:"-"`
	ResetPasswordToken  *string    `db:"reset_password_token" json:"-"`
	ResetPasswordExpire *time.Time `db:"reset_password_expire" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Category    string          `db:"category" json:"category"`
	Stock       int             `db:"stock" json:"stock"`
	Images      Images          `db:"images" json:"images"`
	Ratings     decimal.Decimal `db:"ratings" json:"ratings"`
	CreatedBy   *uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ProductListing is a product row with its review count
type ProductListing struct {
	Product
	ReviewCount int64 `db:"review_count" json:"review_count"`
}

// ProductDetail is a product with its reviews
type ProductDetail struct {
	Product
	Reviews []ReviewView `json:"reviews"`
}

// Review is one user's review of one product
type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Reviewer is the public face of a review author
type Reviewer struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar *Image    `json:"avatar"`
}

// ReviewView is a review joined with its author
type ReviewView struct {
	ReviewID uuid.UUID `json:"review_id"`
	Rating   int       `json:"rating"`
	Comment  string    `json:"comment"`
	Reviewer Reviewer  `json:"reviewer"`
}

// Order represents a customer order
type Order struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	BuyerID       uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	TotalPrice    decimal.Decimal `db:"total_price" json:"total_price"`
	TaxPrice      decimal.Decimal `db:"tax_price" json:"tax_price"`
	ShippingPrice decimal.Decimal `db:"shipping_price" json:"shipping_price"`
	OrderStatus   OrderStatus     `db:"order_status" json:"order_status"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// OrderItem is a snapshot of one purchased product
type OrderItem struct {
	ID        uuid.UUID       `db:"id" json:"order_item_id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Image     string          `db:"image" json:"image"`
	Title     string          `db:"title" json:"title"`
}

// ShippingInfo is the delivery address of an order
type ShippingInfo struct {
	OrderID  uuid.UUID `db:"order_id" json:"-"`
	FullName string    `db:"full_name" json:"full_name"`
	State    string    `db:"state" json:"state"`
	City     string    `db:"city" json:"city"`
	Country  string    `db:"country" json:"country"`
	Address  string    `db:"address" json:"address"`
	Pincode  string    `db:"pincode" json:"pincode"`
	Phone    string    `db:"phone" json:"phone"`
}

// OrderDetails aggregates an order with its items and shipping record
type OrderDetails struct {
	Order
	Items        []OrderItem   `json:"order_items"`
	ShippingInfo *ShippingInfo `json:"shipping_info"`
}

// Payment tracks the provider payment intent of an order
type Payment struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	OrderID         uuid.UUID     `db:"order_id" json:"order_id"`
	PaymentType     string        `db:"payment_type" json:"payment_type"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentIntentID string        `db:"payment_intent_id" json:"payment_intent_id"`
	ClientSecret    string        `db:"client_secret" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// PaymentStatus of a payment row
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)
