// internal/services/actor.go
package services

import (
	"github.com/google/uuid"

	"github.com/javajoker/eshop-backend/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}
