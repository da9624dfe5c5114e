// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/metrics"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type OrderService struct {
	store repository.Store
}

type ShippingInfo struct {
	Street  string `json:"street" validate:"required,max=500"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zip_code" validate:"required,max=100"`
	PhoneNo string `json:"phone_no" validate:"required,max=100"`
	Country string `json:"country" validate:"required,max=100"`
}

type CartItem struct {
	Product  uuid.UUID       `json:"product" validate:"required"`
	Name     string          `json:"name" validate:"max=200"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"required,min=1"`
	Image    string          `json:"image"`
}

// OrderRequest is shared by direct order creation and checkout.
type OrderRequest struct {
	ShippingInfo
	OrderItems []CartItem `json:"orderItems" validate:"dive"`
}

type ProcessOrderRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,order_status"`
}

type OrderListParams struct {
	utils.PaginationParams
	Status models.OrderStatus
}

func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{store: store}
}

func (r *OrderRequest) validate() error {
	if len(r.OrderItems) == 0 {
		return ErrEmptyCart
	}
	if err := utils.ValidateStruct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, item := range r.OrderItems {
		if item.Price.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		if !item.Price.Equal(item.Price.Round(2)) {
			return fmt.Errorf("%w: price must not have more than two decimal places", ErrValidation)
		}
	}
	return nil
}

// CreateOrder places a pay-on-delivery order. Order, items and stock
// decrements commit together; a line asking for more than the stock on hand
// rejects the whole order.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *OrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		products, err := lockProducts(ctx, tx, cartProductIDs(req.OrderItems))
		if err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.OrderItems))
		for _, line := range req.OrderItems {
			product := products[line.Product]
			if product.Stock < line.Quantity {
				return fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, product.Name, product.Stock)
			}

			stock, err := tx.Products().AdjustStock(ctx, product.ID, -line.Quantity)
			if err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
			product.Stock = stock

			productID := product.ID
			items = append(items, models.OrderItem{
				ProductID: &productID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				Price:     line.Price,
				Image:     product.FirstImage(),
			})
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order = &models.Order{
			UserID:        userID,
			Street:        req.Street,
			City:          req.City,
			State:         req.State,
			ZipCode:       req.ZipCode,
			PhoneNo:       req.PhoneNo,
			Country:       req.Country,
			TotalAmount:   total,
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusUnpaid,
			PaymentMode:   models.PaymentModeCOD,
			Items:         items,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(string(models.PaymentModeCOD)).Inc()
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
		"items":    len(order.Items),
	}).Info("Order created")

	return order, nil
}

func cartProductIDs(items []CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Product)
	}
	return ids
}

// lockProducts row-locks each distinct product in id order so that
// concurrent orders over the same products cannot deadlock.
func lockProducts(ctx context.Context, tx repository.Store, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].String() < unique[j].String() })

	products := make(map[uuid.UUID]*models.Product, len(unique))
	for _, id := range unique {
		product, err := tx.Products().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
			}
			return nil, fmt.Errorf("failed to lock product: %w", err)
		}
		products[id] = product
	}
	return products, nil
}

// ListOrders returns a page of orders. Non-admins only see their own.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, params OrderListParams) ([]models.Order, int64, error) {
	if params.Status != "" && !params.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}

	filter := repository.OrderFilter{
		Status: params.Status,
		Offset: params.Offset(),
		Limit:  params.ResPerPage,
	}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}

	orders, total, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ProcessOrder(ctx context.Context, id uuid.UUID, req *ProcessOrderRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	if err := s.store.Orders().UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	logrus.WithFields(logrus.Fields{"order_id": id, "status": req.Status}).Info("Order status updated")

	order, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Orders().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}
	logrus.WithField("order_id", id).Info("Order deleted")
	return nil
}
