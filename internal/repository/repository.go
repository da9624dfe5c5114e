// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/eshop-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the per-entity repositories behind one transaction boundary.
type Store interface {
	Users() UserRepository
	Products() ProductRepository
	Reviews() ReviewRepository
	Orders() OrderRepository

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Count returns the number of users created in [from, to). A zero bound
	// is open.
	Count(ctx context.Context, from, to time.Time) (int64, error)
}

type ProductFilter struct {
	Keyword  string
	Category models.Category
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Offset   int
	Limit    int
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	// Get loads the product with its images and reviews.
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// GetForUpdate locks the product row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	// Delete removes the product together with its images and reviews.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	// AdjustStock adds delta to the stored stock and returns the new value.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error)
	SetRatings(ctx context.Context, id uuid.UUID, ratings decimal.Decimal) error

	AddImage(ctx context.Context, image *models.ProductImage) error
	GetImage(ctx context.Context, id uuid.UUID) (*models.ProductImage, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error

	// Inventory counts products, those at or below lowStock, and those with
	// no stock left.
	Inventory(ctx context.Context, lowStock int) (InventorySummary, error)
}

type InventorySummary struct {
	Products   int64 `json:"products"`
	LowStock   int64 `json:"low_stock"`
	OutOfStock int64 `json:"out_of_stock"`
}

type ReviewRepository interface {
	FindByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	// Save inserts a new review or updates an existing one.
	Save(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	// AverageRating returns the mean rating rounded to 2 places, or 0.
	AverageRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status models.OrderStatus
	Offset int
	Limit  int
}

type OrderRepository interface {
	// Create inserts the order and its items.
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Sales aggregates orders created in [from, to). A zero bound is open.
	Sales(ctx context.Context, from, to time.Time) (SalesSummary, error)
}

// SalesSummary only counts paid orders towards Revenue.
type SalesSummary struct {
	Orders        int64           `json:"orders"`
	PaidOrders    int64           `json:"paid_orders"`
	PendingOrders int64           `json:"pending_orders"`
	Revenue       decimal.Decimal `json:"revenue"`
}
