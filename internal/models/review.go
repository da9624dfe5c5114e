// internal/models/review.go
package models

import (
	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (product, user); the review service enforces it.
type Review struct {
	BaseModel
	ProductID uuid.UUID `json:"product" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user" gorm:"type:uuid;not null;index"`
	Rating    int       `json:"rating" gorm:"not null;default:0"`
	Comment   string    `json:"comment" gorm:"type:text;not null"`
}
