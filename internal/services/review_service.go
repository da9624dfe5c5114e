// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type ReviewService struct {
	store repository.Store
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=5000"`
}

func NewReviewService(store repository.Store) *ReviewService {
	return &ReviewService{store: store}
}

// SaveReview creates the caller's review of a product, or updates it when one
// already exists, and refreshes the product's ratings in the same transaction.
func (s *ReviewService) SaveReview(ctx context.Context, productID, userID uuid.UUID, req *ReviewRequest) (*models.Review, error) {
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, ErrRatingRange
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var review *models.Review
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().GetForUpdate(ctx, productID); err != nil {
			return notFound(err)
		}

		existing, err := tx.Reviews().FindByProductAndUser(ctx, productID, userID)
		switch {
		case err == nil:
			review = existing
		case errors.Is(err, repository.ErrNotFound):
			review = &models.Review{ProductID: productID, UserID: userID}
		default:
			return err
		}

		review.Rating = req.Rating
		review.Comment = req.Comment
		if err := tx.Reviews().Save(ctx, review); err != nil {
			return fmt.Errorf("failed to save review: %w", err)
		}

		return s.recomputeRatings(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"product_id": productID,
		"user_id":    userID,
		"rating":     review.Rating,
	}).Info("Review saved")

	return review, nil
}

// DeleteReview removes the caller's review of a product.
func (s *ReviewService) DeleteReview(ctx context.Context, productID, userID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().GetForUpdate(ctx, productID); err != nil {
			return notFound(err)
		}

		review, err := tx.Reviews().FindByProductAndUser(ctx, productID, userID)
		if err != nil {
			return notFound(err)
		}
		if err := tx.Reviews().Delete(ctx, review.ID); err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}

		return s.recomputeRatings(ctx, tx, productID)
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"product_id": productID, "user_id": userID}).Info("Review deleted")
	return nil
}

func (s *ReviewService) recomputeRatings(ctx context.Context, tx repository.Store, productID uuid.UUID) error {
	avg, err := tx.Reviews().AverageRating(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to compute ratings: %w", err)
	}
	if err := tx.Products().SetRatings(ctx, productID, avg); err != nil {
		return fmt.Errorf("failed to update ratings: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
