// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseModel
	Name        string          `json:"name" gorm:"size:200;not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(7,2);not null;default:0"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Brand       string          `json:"brand" gorm:"size:200;not null"`
	Category    Category        `json:"category" gorm:"type:varchar(30);not null;index"`
	Ratings     decimal.Decimal `json:"ratings" gorm:"type:decimal(3,2);default:0"`
	Stock       int             `json:"stock" gorm:"not null;default:0"`
	UserID      *uuid.UUID      `json:"user" gorm:"type:uuid;index"`

	// Relationships, loaded explicitly by the repository
	Images  []ProductImage `json:"images" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Reviews []Review       `json:"reviews" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	User    *User          `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// ProductImage may briefly exist without a product while an upload races a delete.
type ProductImage struct {
	BaseModel
	ProductID *uuid.UUID `json:"product" gorm:"type:uuid;index"`
	Image     string     `json:"image" gorm:"type:text;not null"`
	Key       string     `json:"-" gorm:"size:255"`
}

// FirstImage returns the URL of the first image or an empty string.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Image
}
