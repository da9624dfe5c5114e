// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type UserService struct {
	store repository.Store
}

// UpdateUserRequest replaces the profile. An empty password keeps the
// current one.
type UpdateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"omitempty,min=6"`
}

type CreateAdminRequest struct {
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
	Email     string `validate:"required,email,max=255"`
	Password  string `validate:"required,min=8"`
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateCurrentUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = email
	user.Username = email
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("User profile updated")
	return user, nil
}

// CreateAdmin creates an administrator, or promotes the existing account
// with the same email and resets its password.
func (s *UserService) CreateAdmin(ctx context.Context, req *CreateAdminRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var admin *models.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByEmail(ctx, req.Email)
		switch {
		case err == nil:
			admin = user
		case errors.Is(err, repository.ErrNotFound):
			admin = &models.User{
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Email:     req.Email,
				Username:  req.Email,
			}
		default:
			return err
		}

		admin.Role = models.UserRoleAdmin
		if err := admin.SetPassword(req.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		if admin.ID == uuid.Nil {
			return tx.Users().Create(ctx, admin)
		}
		return tx.Users().Update(ctx, admin)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": admin.ID, "email": admin.Email}).Info("Administrator ready")
	return admin, nil
}
