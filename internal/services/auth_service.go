// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/config"
	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

const ResetTokenTTL = 30 * time.Minute

type AuthService struct {
	store  repository.Store
	cfg    *config.Config
	mailer Mailer
	now    func() time.Time
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func NewAuthService(store repository.Store, cfg *config.Config, mailer Mailer) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	email := req.Email
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Username:  email,
		Role:      models.UserRoleUser,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}

// ForgotPassword issues a reset token and emails the link. Unknown emails are
// not reported to the caller; delivery failures are only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest, host string) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("email", req.Email).Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expire := s.now().Add(ResetTokenTTL)
	user.Profile.ResetPasswordToken = token
	user.Profile.ResetPasswordExpire = &expire

	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%sapi/reset_password/%s", host, token)
	if err := s.mailer.SendPasswordResetEmail(ctx, user, resetURL); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to send password reset email")
	}

	return nil
}

// ResetPassword consumes a reset token. The token and its expiry are cleared
// in the same update that stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req *ResetPasswordRequest) error {
	user, err := s.store.Users().GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	expire := user.Profile.ResetPasswordExpire
	if expire == nil || expire.Before(s.now()) {
		return ErrTokenExpired
	}

	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := user.SetPassword(req.Password); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Profile.ResetPasswordToken = ""
	user.Profile.ResetPasswordExpire = nil

	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("Password reset")
	return nil
}
