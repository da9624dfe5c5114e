// internal/models/order.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	BaseModel
	UserID        uuid.UUID       `json:"user" gorm:"type:uuid;not null;index"`
	Street        string          `json:"street" gorm:"size:500;not null"`
	City          string          `json:"city" gorm:"size:100;not null"`
	State         string          `json:"state" gorm:"size:100;not null"`
	ZipCode       string          `json:"zip_code" gorm:"size:100;not null"`
	PhoneNo       string          `json:"phone_no" gorm:"size:100;not null"`
	Country       string          `json:"country" gorm:"size:100;not null"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(7,2);not null;default:0"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);default:'UNPAID';index"`
	PaymentMode   PaymentMode     `json:"payment_mode" gorm:"type:varchar(20);default:'COD'"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);default:'Pending';index"`

	// CheckoutSessionID links a paid order to the provider session that
	// produced it; the unique index makes webhook redelivery a no-op.
	CheckoutSessionID *string `json:"checkout_session_id,omitempty" gorm:"size:255;uniqueIndex"`

	Items []OrderItem `json:"orderItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem snapshots the product as it was when the order was placed.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID       `json:"order" gorm:"type:uuid;not null;index"`
	ProductID *uuid.UUID      `json:"product" gorm:"type:uuid;index"`
	Name      string          `json:"name" gorm:"size:200;not null"`
	Quantity  int             `json:"quantity" gorm:"not null;default:1"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(7,2);not null"`
	Image     string          `json:"image" gorm:"type:text"`
}
