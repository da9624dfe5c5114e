// internal/repository/gorm_users.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/eshop-backend/internal/models"
)

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var user models.User
	if err := r.db.WithContext(ctx).Where("profile_reset_password_token = ?", token).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) Update(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

func (r *gormUsers) Count(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := createdBetween(r.db.WithContext(ctx).Model(&models.User{}), from, to).Count(&count).Error
	return count, err
}
