// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

// Largest value a decimal(7,2) column holds.
var maxPrice = decimal.RequireFromString("99999.99")

type ProductService struct {
	store   repository.Store
	storage *StorageService
}

type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description" validate:"required,max=1000"`
	Brand       string          `json:"brand" validate:"required,max=200"`
	Category    string          `json:"category" validate:"required,product_category"`
	Stock       int             `json:"stock" validate:"min=0"`
}

type ProductListParams struct {
	utils.PaginationParams
	Keyword  string
	Category string
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// ImageUpload is one file of a multipart upload.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

func NewProductService(store repository.Store, storage *StorageService) *ProductService {
	return &ProductService{
		store:   store,
		storage: storage,
	}
}

func (r *ProductRequest) validate() error {
	if err := utils.ValidateStruct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if r.Price.IsNegative() || r.Price.GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price must be between 0 and %s", ErrValidation, maxPrice)
	}
	if !r.Price.Equal(r.Price.Round(2)) {
		return fmt.Errorf("%w: price has more than 2 decimal places", ErrValidation)
	}
	return nil
}

func (s *ProductService) ListProducts(ctx context.Context, params ProductListParams) ([]models.Product, int64, error) {
	filter := repository.ProductFilter{
		Keyword:  params.Keyword,
		Brand:    params.Brand,
		MinPrice: params.MinPrice,
		MaxPrice: params.MaxPrice,
		Offset:   params.Offset(),
		Limit:    params.ResPerPage,
	}
	if params.Category != "" {
		category := models.Category(params.Category)
		if !category.Valid() {
			return nil, 0, fmt.Errorf("%w: unknown category %q", ErrValidation, params.Category)
		}
		filter.Category = category
	}

	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return product, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, actor Actor, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	owner := actor.UserID
	product := &models.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Brand:       req.Brand,
		Category:    models.Category(req.Category),
		Stock:       req.Stock,
		UserID:      &owner,
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	logrus.WithFields(logrus.Fields{"product_id": product.ID, "user_id": owner}).Info("Product created")
	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct replaces the editable fields. Only the owning user may update.
func (s *ProductService) UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		product, err := tx.Products().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if !ownedBy(product, actor) {
			return ErrForbidden
		}

		product.Name = req.Name
		product.Price = req.Price
		product.Description = req.Description
		product.Brand = req.Brand
		product.Category = models.Category(req.Category)
		product.Stock = req.Stock
		return tx.Products().Update(ctx, product)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"product_id": id, "user_id": actor.UserID}).Info("Product updated")
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes the product with its images and reviews, then
// deletes the stored image files.
func (s *ProductService) DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error {
	var images []models.ProductImage
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		product, err := tx.Products().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if !ownedBy(product, actor) {
			return ErrForbidden
		}
		images = product.Images
		return tx.Products().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, image := range images {
		if err := s.storage.DeleteFile(ctx, image.Key); err != nil {
			logrus.WithError(err).WithField("key", image.Key).Warn("Failed to delete product image file")
		}
	}

	logrus.WithFields(logrus.Fields{"product_id": id, "user_id": actor.UserID}).Info("Product deleted")
	return nil
}

func ownedBy(product *models.Product, actor Actor) bool {
	return product.UserID != nil && *product.UserID == actor.UserID
}

// UploadImages stores each file and attaches it to the product.
func (s *ProductService) UploadImages(ctx context.Context, productID uuid.UUID, files []ImageUpload) ([]models.ProductImage, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images provided", ErrValidation)
	}
	if _, err := s.store.Products().Get(ctx, productID); err != nil {
		return nil, notFound(err)
	}

	images := make([]models.ProductImage, 0, len(files))
	for _, file := range files {
		uploaded, err := s.storage.UploadImage(ctx, file.Filename, file.Content)
		if err != nil {
			return images, err
		}

		id := productID
		image := models.ProductImage{ProductID: &id, Image: uploaded.URL, Key: uploaded.Key}
		if err := s.store.Products().AddImage(ctx, &image); err != nil {
			if delErr := s.storage.DeleteFile(ctx, uploaded.Key); delErr != nil {
				logrus.WithError(delErr).WithField("key", uploaded.Key).Warn("Failed to clean up uploaded file")
			}
			return images, fmt.Errorf("failed to save image: %w", err)
		}
		images = append(images, image)
	}

	logrus.WithFields(logrus.Fields{"product_id": productID, "count": len(images)}).Info("Product images uploaded")
	return images, nil
}

func (s *ProductService) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error {
	image, err := s.store.Products().GetImage(ctx, imageID)
	if err != nil {
		return notFound(err)
	}
	if image.ProductID == nil || *image.ProductID != productID {
		return ErrNotFound
	}

	if err := s.store.Products().DeleteImage(ctx, imageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if err := s.storage.DeleteFile(ctx, image.Key); err != nil {
		logrus.WithError(err).WithField("key", image.Key).Warn("Failed to delete product image file")
	}
	return nil
}
