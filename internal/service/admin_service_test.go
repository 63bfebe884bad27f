package service

import (
	"context"
	"testing"
	"time"

	"ecommerce-api/internal/apperr"
	"ecommerce-api/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatGrowth(t *testing.T) {
	assert.Equal(t, "0%", FormatGrowth(dec("100"), decimal.Zero))
	assert.Equal(t, "+50.00%", FormatGrowth(dec("150"), dec("100")))
	assert.Equal(t, "-25.00%", FormatGrowth(dec("75"), dec("100")))
	assert.Equal(t, "0.00%", FormatGrowth(dec("100"), dec("100")))
	assert.Equal(t, "+33.33%", FormatGrowth(dec("4"), dec("3")))
}

func TestDashboardStats(t *testing.T) {
	now := time.Date(2026, time.March, 15, 13, 30, 0, 0, time.UTC)
	today := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	s := &fakeAdminStore{
		revenue: map[time.Time]decimal.Decimal{
			today:                   dec("40"),
			today.AddDate(0, 0, -1): dec("10"),
			mar:                     dec("300"),
			feb:                     dec("200"),
		},
		total: dec("1000"),
		users: map[uuid.UUID]*models.User{},
	}
	for _, created := range []time.Time{feb, mar.AddDate(0, 0, 2), mar.AddDate(0, 0, 5)} {
		u := &models.User{ID: uuid.New(), Role: models.RoleUser, CreatedAt: created}
		s.users[u.ID] = u
	}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, CreatedAt: mar}
	s.users[admin.ID] = admin

	svc := NewAdminService(s, &fakeImages{})
	svc.now = func() time.Time { return now }

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(stats.TodaysRevenue))
	assert.True(t, dec("10").Equal(stats.YesterdaysRevenue))
	assert.True(t, dec("1000").Equal(stats.TotalRevenue))
	assert.True(t, dec("300").Equal(stats.CurrentMonthSales))
	assert.Equal(t, "+50.00%", stats.RevenueGrowth)
	assert.EqualValues(t, 3, stats.TotalUsersCount)
	assert.EqualValues(t, 2, stats.NewUsersThisMonth)
	assert.Len(t, stats.OrderStatusCounts, 4)
	assert.Contains(t, s.since, mar)
}

func TestListUsers(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleUser}
	svc := NewAdminService(&fakeAdminStore{users: map[uuid.UUID]*models.User{u.ID: u}}, &fakeImages{})

	page, err := svc.ListUsers(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.EqualValues(t, 1, page.TotalUsers)
	assert.Len(t, page.Users, 1)
}

func TestDeleteUserDestroysAvatar(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleUser,
		Avatar: &models.Image{PublicID: "Ecommerce_Avatars/x"}}
	images := &fakeImages{}
	svc := NewAdminService(&fakeAdminStore{users: map[uuid.UUID]*models.User{u.ID: u}}, images)

	require.NoError(t, svc.DeleteUser(context.Background(), u.ID))
	assert.Equal(t, []string{"Ecommerce_Avatars/x"}, images.destroyed)

	err := svc.DeleteUser(context.Background(), u.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
