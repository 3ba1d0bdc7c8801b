package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/google/uuid"
)

// ReviewService defines operations on product reviews
type ReviewService interface {
	ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error)
	CreateReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*domain.Review, error)
	DeleteReview(ctx context.Context, reviewID, actorID uuid.UUID, role string) error
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(reviewRepo repository.ReviewRepository, productRepo repository.ProductRepository) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
	}
}

// ListReviews returns the reviews of an existing product
func (s *reviewService) ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	reviews, err := s.reviewRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// CreateReview records a 1..5 rating. A user reviews a product at most once.
func (s *reviewService) CreateReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, &domain.ValidationError{Field: "rating", Reason: "rating must be between 1 and 5"}
	}

	review := &domain.Review{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}

	return review, nil
}

// DeleteReview removes a review written by actorID, or any review for admins
func (s *reviewService) DeleteReview(ctx context.Context, reviewID, actorID uuid.UUID, role string) error {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return err
		}
		return fmt.Errorf("failed to get review: %w", err)
	}

	if review.UserID != actorID && role != domain.RoleAdmin {
		return ErrForbidden
	}

	return s.reviewRepo.Delete(ctx, reviewID)
}
