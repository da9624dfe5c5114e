// internal/repository/gorm_products.go
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/eshop-backend/internal/models"
)

type gormProducts struct {
	db *gorm.DB
}

func (r *gormProducts) Create(ctx context.Context, product *models.Product) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error)
}

func (r *gormProducts) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *gormProducts) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	db := r.db.WithContext(ctx)

	var product models.Product
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("product_id = ?", id).Order("created_at ASC").Find(&product.Images).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormProducts) Update(ctx context.Context, product *models.Product) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(product).Error)
}

func (r *gormProducts) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormProducts) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})

	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("(name ILIKE ? OR description ILIKE ?)", like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Brand != "" {
		query = query.Where("brand ILIKE ?", filter.Brand)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := paginate(query, filter.Offset, filter.Limit).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at ASC").
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *gormProducts) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var product models.Product
	res := r.db.WithContext(ctx).
		Model(&product).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return product.Stock, nil
}

func (r *gormProducts) SetRatings(ctx context.Context, id uuid.UUID, ratings decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).UpdateColumn("ratings", ratings)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProducts) AddImage(ctx context.Context, image *models.ProductImage) error {
	return translate(r.db.WithContext(ctx).Create(image).Error)
}

func (r *gormProducts) GetImage(ctx context.Context, id uuid.UUID) (*models.ProductImage, error) {
	var image models.ProductImage
	if err := r.db.WithContext(ctx).First(&image, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &image, nil
}

func (r *gormProducts) DeleteImage(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.ProductImage{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProducts) Inventory(ctx context.Context, lowStock int) (InventorySummary, error) {
	var summary InventorySummary
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Select(`COUNT(*) AS products,
			COUNT(*) FILTER (WHERE stock <= ?) AS low_stock,
			COUNT(*) FILTER (WHERE stock <= 0) AS out_of_stock`, lowStock).
		Scan(&summary).Error
	return summary, err
}
