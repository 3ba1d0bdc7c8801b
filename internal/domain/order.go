package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is an append-only purchase header with its line items
type Order struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	BuyerID   uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Status    OrderStatus     `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	Items     []OrderLineItem `json:"items"`
}

// OrderLineItem is one immutable line of an order. UnitPrice is the price at order time.
type OrderLineItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// LineTotal returns quantity * unit price
func (l OrderLineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Bounds of the stored order columns: INTEGER quantities and DECIMAL(14,2) totals
const MaxQuantity = math.MaxInt32

var MaxOrderTotal = decimal.RequireFromString("999999999999.99")

// LineRequest is a single (product, quantity) pair submitted by a buyer
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// LineSnapshot freezes the price of a product for one order line
type LineSnapshot struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Snapshot captures the product's current price for the given quantity.
// Later edits to the product never change the returned values.
func Snapshot(product *Product, quantity int) LineSnapshot {
	return LineSnapshot{
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		LineTotal: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// ValidateLineRequests checks the shape of an order request without touching the store
func ValidateLineRequests(items []LineRequest) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return &ValidationError{Field: "product_id", Reason: "product id is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: "quantity", Reason: "quantity must be a positive integer"}
		}
		if item.Quantity > MaxQuantity {
			return &ValidationError{Field: "quantity", Reason: "quantity is too large"}
		}
	}
	return nil
}

// MergeLineRequests folds repeated product ids into a single line, keeping first-seen order.
// Items must already pass ValidateLineRequests; a combined quantity above MaxQuantity is rejected.
func MergeLineRequests(items []LineRequest) ([]LineRequest, error) {
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]LineRequest, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			if item.Quantity > MaxQuantity-merged[i].Quantity {
				return nil, &ValidationError{Field: "quantity", Reason: "combined quantity for product " + item.ProductID.String() + " is too large"}
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// BuildOrder assembles a pending order whose total is the sum of the snapshot line totals
func BuildOrder(buyerID uuid.UUID, snapshots []LineSnapshot, now time.Time) (*Order, error) {
	if len(snapshots) == 0 {
		return nil, ErrEmptyOrder
	}

	order := &Order{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		Total:     decimal.Zero,
		Status:    OrderStatusPending,
		CreatedAt: now,
		Items:     make([]OrderLineItem, 0, len(snapshots)),
	}

	for _, s := range snapshots {
		order.Items = append(order.Items, OrderLineItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: s.ProductID,
			Quantity:  s.Quantity,
			UnitPrice: s.UnitPrice,
		})
		order.Total = order.Total.Add(s.LineTotal)
	}

	if order.Total.GreaterThan(MaxOrderTotal) {
		return nil, &ValidationError{Field: "items", Reason: "order total exceeds the maximum amount"}
	}

	return order, nil
}
