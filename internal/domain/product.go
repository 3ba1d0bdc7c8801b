package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPrice is the largest price a DECIMAL(12,2) column holds
var MaxPrice = decimal.RequireFromString("9999999999.99")

// Product represents a sellable item in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SellerID    uuid.UUID       `json:"seller_id" db:"seller_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// CanBeManagedBy reports whether the user may edit or delete the product
func (p *Product) CanBeManagedBy(userID uuid.UUID, role string) bool {
	return role == RoleAdmin || p.SellerID == userID
}

// Review is a buyer's rating of a product
type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WishlistItem links a user to a product they want to keep an eye on
type WishlistItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Product   *Product  `json:"product,omitempty"`
}
