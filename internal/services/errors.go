// internal/services/errors.go
package services

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrRatingRange        = errors.New("rating must be between 1 and 5")
	ErrEmptyCart          = errors.New("no order items")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidImage       = errors.New("invalid image")

	// Payment provider and webhook errors
	ErrPaymentProvider  = errors.New("payment provider unavailable")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrPermanentEvent marks a webhook event whose data can never be
	// materialized. It is acknowledged so the provider stops redelivering.
	ErrPermanentEvent = errors.New("unprocessable webhook event")
)
