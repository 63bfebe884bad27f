package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	userPageSize      = 10
	topSellerLimit    = 5
	lowStockThreshold = 5
)

// AdminService serves the admin dashboard and user administration
type AdminService struct {
	store  AdminStore
	images ImageStore
	now    func() time.Time
	logger *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store AdminStore, images ImageStore) *AdminService {
	return &AdminService{
		store:  store,
		images: images,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// DashboardStats is the admin dashboard rollup
type DashboardStats struct {
	TodaysRevenue      decimal.Decimal              `json:"todaysRevenue"`
	YesterdaysRevenue  decimal.Decimal              `json:"yesterdaysRevenue"`
	TotalRevenue       decimal.Decimal              `json:"totalRevenueAllTime"`
	TotalUsersCount    int64                        `json:"totalUsersCount"`
	OrderStatusCounts  map[models.OrderStatus]int64 `json:"ordersStatusCounts"`
	MonthlySales       []models.MonthlySales        `json:"monthlySales"`
	CurrentMonthSales  decimal.Decimal              `json:"currentMonthSales"`
	TopSellingProducts []models.TopSeller           `json:"topSellingProducts"`
	LowStockProducts   []models.LowStock            `json:"lowStockProducts"`
	RevenueGrowth      string                       `json:"revenueGrowth"`
	NewUsersThisMonth  int64                        `json:"newUsersThisMonth"`
}

// FormatGrowth renders month-over-month growth as a signed percentage.
// No revenue last month means no growth figure.
func FormatGrowth(current, previous decimal.Decimal) string {
	if !previous.IsPositive() {
		return "0%"
	}
	rate := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	sign := ""
	if rate.IsPositive() {
		sign = "+"
	}
	return sign + rate.StringFixed(2) + "%"
}

// DashboardStats computes the dashboard figures. All ranges are half-open.
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.DashboardStats")
	defer span.End()

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)
	yesterday := today.AddDate(0, 0, -1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)
	lastMonth := monthStart.AddDate(0, -1, 0)

	var (
		stats = &DashboardStats{}
		prev  decimal.Decimal
		err   error
	)
	wrap := func(what string, err error) error {
		return util.RecordError(span, fmt.Errorf("failed to load %s: %w", what, err))
	}

	if stats.TodaysRevenue, err = s.store.RevenueBetween(ctx, today, tomorrow); err != nil {
		return nil, wrap("today's revenue", err)
	}
	if stats.YesterdaysRevenue, err = s.store.RevenueBetween(ctx, yesterday, today); err != nil {
		return nil, wrap("yesterday's revenue", err)
	}
	if stats.TotalRevenue, err = s.store.TotalRevenue(ctx); err != nil {
		return nil, wrap("total revenue", err)
	}
	if stats.TotalUsersCount, err = s.store.CountUsers(ctx, models.RoleUser, time.Time{}); err != nil {
		return nil, wrap("user count", err)
	}
	if stats.OrderStatusCounts, err = s.store.OrderStatusCounts(ctx); err != nil {
		return nil, wrap("order status counts", err)
	}
	if stats.MonthlySales, err = s.store.MonthlySales(ctx); err != nil {
		return nil, wrap("monthly sales", err)
	}
	if stats.CurrentMonthSales, err = s.store.RevenueBetween(ctx, monthStart, nextMonth); err != nil {
		return nil, wrap("current month sales", err)
	}
	if prev, err = s.store.RevenueBetween(ctx, lastMonth, monthStart); err != nil {
		return nil, wrap("last month sales", err)
	}
	if stats.TopSellingProducts, err = s.store.TopSellingProducts(ctx, topSellerLimit); err != nil {
		return nil, wrap("top sellers", err)
	}
	if stats.LowStockProducts, err = s.store.LowStockProducts(ctx, lowStockThreshold); err != nil {
		return nil, wrap("low stock products", err)
	}
	if stats.NewUsersThisMonth, err = s.store.CountUsers(ctx, models.RoleUser, monthStart); err != nil {
		return nil, wrap("new users", err)
	}

	stats.RevenueGrowth = FormatGrowth(stats.CurrentMonthSales, prev)
	return stats, nil
}

// UserPage is one page of customer accounts
type UserPage struct {
	Users       []models.User `json:"users"`
	TotalUsers  int64         `json:"totalUsers"`
	CurrentPage int           `json:"currentPage"`
}

// ListUsers returns customers newest first, ten per page
func (s *AdminService) ListUsers(ctx context.Context, page int) (*UserPage, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.ListUsers")
	defer span.End()

	if page < 1 {
		page = 1
	}
	users, total, err := s.store.ListUsers(ctx, models.RoleUser, userPageSize, (page-1)*userPageSize)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list users: %w", err))
	}
	return &UserPage{Users: users, TotalUsers: total, CurrentPage: page}, nil
}

// DeleteUser removes an account, then its avatar
func (s *AdminService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "AdminService.DeleteUser")
	defer span.End()

	user, err := s.store.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to delete user: %w", err))
	}

	if user.Avatar != nil && user.Avatar.PublicID != "" {
		if err := s.images.Destroy(ctx, user.Avatar.PublicID); err != nil {
			s.logger.Error("Failed to destroy avatar",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
		}
	}
	s.logger.Info("User deleted", zap.String("user_id", user.ID.String()))
	return nil
}
