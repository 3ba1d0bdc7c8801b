package service

import (
	"context"
	"fmt"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/google/uuid"
)

// WishlistService manages a user's saved products
type WishlistService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
}

type wishlistService struct {
	wishlistRepo repository.WishlistRepository
}

// NewWishlistService creates a new instance of WishlistService
func NewWishlistService(wishlistRepo repository.WishlistRepository) WishlistService {
	return &wishlistService{wishlistRepo: wishlistRepo}
}

func (s *wishlistService) List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	items, err := s.wishlistRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return items, nil
}

// Add saves a product; adding one already present is not an error
func (s *wishlistService) Add(ctx context.Context, userID, productID uuid.UUID) error {
	return s.wishlistRepo.Add(ctx, &domain.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *wishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.wishlistRepo.Remove(ctx, userID, productID)
}
