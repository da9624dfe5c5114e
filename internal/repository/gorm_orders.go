// internal/repository/gorm_orders.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/eshop-backend/internal/models"
)

type gormOrders struct {
	db *gorm.DB
}

func (r *gormOrders) Create(ctx context.Context, order *models.Order) error {
	// Items are inserted through the association.
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *gormOrders) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrders) GetByCheckoutSession(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("checkout_session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrders) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := paginate(query, filter.Offset, filter.Limit).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *gormOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormOrders) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormOrders) Sales(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	var row struct {
		Orders        int64
		PaidOrders    int64
		PendingOrders int64
		Revenue       decimal.Decimal
	}
	err := createdBetween(r.db.WithContext(ctx).Model(&models.Order{}), from, to).
		Select(`COUNT(*) AS orders,
			COUNT(*) FILTER (WHERE payment_status = ?) AS paid_orders,
			COUNT(*) FILTER (WHERE status = ?) AS pending_orders,
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = ?), 0) AS revenue`,
			models.PaymentStatusPaid, models.OrderStatusPending, models.PaymentStatusPaid).
		Scan(&row).Error
	if err != nil {
		return SalesSummary{}, err
	}
	return SalesSummary(row), nil
}
