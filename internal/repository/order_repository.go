package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopfront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientStock is returned by DecrementStock when the guarded update matches no row
	ErrInsufficientStock = errors.New("insufficient stock")
)

// OrderRepository is the read side of orders. Orders are append-only, so there is no update or delete.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
}

// OrderStore opens the atomic unit in which an order is committed
type OrderStore interface {
	BeginTx(ctx context.Context) (OrderTx, error)
}

// OrderTx is a single order commit. Every method runs inside the same database
// transaction; nothing is visible to other sessions until Commit.
type OrderTx interface {
	// GetProductForUpdate reads the product row and holds its lock until the tx ends
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// DecrementStock subtracts qty if enough stock remains, else ErrInsufficientStock
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertLineItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderLineItem) error
	Commit() error
	Rollback() error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// FindByID retrieves an order together with its line items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, total, status, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.BuyerID, &order.Total, &order.Status, &order.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	items, err := r.lineItems(ctx, `WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []domain.OrderLineItem{}
	}

	return order, nil
}

// ListByBuyer returns the buyer's orders, newest first, each with its lines
func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, buyer_id, total, status, created_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(&order.ID, &order.BuyerID, &order.Total, &order.Status, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	items, err := r.lineItems(ctx,
		`WHERE order_id IN (SELECT id FROM orders WHERE buyer_id = $1)`, buyerID)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
		if order.Items == nil {
			order.Items = []domain.OrderLineItem{}
		}
	}

	return orders, nil
}

func (r *orderRepository) lineItems(ctx context.Context, where string, arg interface{}) (map[uuid.UUID][]domain.OrderLineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		`+where+`
		ORDER BY order_id, line_no
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]domain.OrderLineItem)
	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return byOrder, nil
}

type orderStore struct {
	db *sql.DB
}

// NewOrderStore creates an OrderStore backed by the given pool
func NewOrderStore(db *sql.DB) OrderStore {
	return &orderStore{db: db}
}

// BeginTx starts a READ COMMITTED transaction; row locks provide the per-product serialization
func (s *orderStore) BeginTx(ctx context.Context) (OrderTx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &orderTx{tx: tx}, nil
}

type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) GetProductForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

func (t *orderTx) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, qty)
	if err != nil {
		if isCheckViolation(err) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	return expectOneRow(result, ErrInsufficientStock)
}

func (t *orderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, order.BuyerID, order.Total, string(order.Status), order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *orderTx) InsertLineItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderLineItem) error {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO order_items (id, order_id, line_no, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare order item insert: %w", err)
	}
	defer stmt.Close()

	// line_no keeps the lines in the order the buyer listed them
	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, orderID, i+1, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (t *orderTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *orderTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
