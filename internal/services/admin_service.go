// internal/services/admin_service.go
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/eshop-backend/internal/repository"
)

// LowStockThreshold marks a product as running out on the dashboard.
const LowStockThreshold = 5

type AdminService struct {
	store repository.Store
	now   func() time.Time
}

type AdminDashboardStats struct {
	TotalUsers        int64                       `json:"total_users"`
	NewUsersThisMonth int64                       `json:"new_users_this_month"`
	UserGrowth        float64                     `json:"user_growth"`
	Inventory         repository.InventorySummary `json:"inventory"`
	Sales             repository.SalesSummary     `json:"sales"`
	MonthlySales      repository.SalesSummary     `json:"monthly_sales"`
	RevenueGrowth     float64                     `json:"revenue_growth"`
}

func NewAdminService(store repository.Store) *AdminService {
	return &AdminService{store: store, now: time.Now}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	var err error

	// User statistics
	if stats.TotalUsers, err = s.store.Users().Count(ctx, time.Time{}, time.Time{}); err != nil {
		return nil, err
	}
	if stats.NewUsersThisMonth, err = s.store.Users().Count(ctx, monthStart, time.Time{}); err != nil {
		return nil, err
	}
	lastMonthUsers, err := s.store.Users().Count(ctx, lastMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	if stats.Inventory, err = s.store.Products().Inventory(ctx, LowStockThreshold); err != nil {
		return nil, err
	}

	// Revenue statistics
	if stats.Sales, err = s.store.Orders().Sales(ctx, time.Time{}, time.Time{}); err != nil {
		return nil, err
	}
	if stats.MonthlySales, err = s.store.Orders().Sales(ctx, monthStart, time.Time{}); err != nil {
		return nil, err
	}
	lastMonthSales, err := s.store.Orders().Sales(ctx, lastMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	// Growth calculations
	if lastMonthUsers > 0 {
		stats.UserGrowth = float64(stats.NewUsersThisMonth-lastMonthUsers) / float64(lastMonthUsers) * 100
	}
	if lastMonthSales.Revenue.IsPositive() {
		stats.RevenueGrowth = growth(stats.MonthlySales.Revenue, lastMonthSales.Revenue)
	}

	return stats, nil
}

// growth returns the percentage change from previous to current, rounded to
// two places.
func growth(current, previous decimal.Decimal) float64 {
	pct, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}
