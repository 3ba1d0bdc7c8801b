package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"

	"github.com/google/uuid"
)

var ErrWishlistItemNotFound = errors.New("product is not in wishlist")

// WishlistRepository defines the interface for wishlist data access
type WishlistRepository interface {
	Add(ctx context.Context, item *domain.WishlistItem) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error)
}

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new instance of WishlistRepository
func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

// Add stores the item; adding a product twice is a no-op
func (r *wishlistRepository) Add(ctx context.Context, item *domain.WishlistItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (id, user_id, product_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, item.ID, item.UserID, item.ProductID, item.CreatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}

	return nil
}

func (r *wishlistRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}

	return expectOneRow(result, ErrWishlistItemNotFound)
}

// ListByUser returns the user's wishlist joined with the current product rows
func (r *wishlistRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.product_id, w.created_at,
		       p.id, p.seller_id, p.name, p.description, p.price, p.stock, p.image_url, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	items := []*domain.WishlistItem{}
	for rows.Next() {
		item := &domain.WishlistItem{Product: &domain.Product{}}
		p := item.Product
		err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.CreatedAt,
			&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist: %w", err)
	}

	return items, nil
}
