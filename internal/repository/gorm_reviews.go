// internal/repository/gorm_reviews.go
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/eshop-backend/internal/models"
)

type gormReviews struct {
	db *gorm.DB
}

func (r *gormReviews) FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		First(&review).Error
	if err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

func (r *gormReviews) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at ASC").Find(&reviews).Error
	return reviews, err
}

func (r *gormReviews) Save(ctx context.Context, review *models.Review) error {
	return translate(r.db.WithContext(ctx).Save(review).Error)
}

func (r *gormReviews) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Review{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormReviews) AverageRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var avg decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0)").
		Where("product_id = ?", productID).
		Row().
		Scan(&avg)
	if err != nil {
		return decimal.Zero, err
	}
	return avg.Round(2), nil
}
