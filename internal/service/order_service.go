package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/metrics"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrForbidden is returned when the caller may not act on a resource owned by someone else
var ErrForbidden = errors.New("insufficient permissions")

// OrderService places and reads orders
type OrderService interface {
	PlaceOrder(ctx context.Context, buyerID uuid.UUID, items []domain.LineRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, role string) (*domain.Order, error)
	ListOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
}

type orderService struct {
	store     repository.OrderStore
	orderRepo repository.OrderRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(store repository.OrderStore, orderRepo repository.OrderRepository, logger *zap.Logger) OrderService {
	return &orderService{
		store:     store,
		orderRepo: orderRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// PlaceOrder commits an order atomically: either the order, all of its lines and
// every stock decrement become visible together, or nothing changes.
func (s *orderService) PlaceOrder(ctx context.Context, buyerID uuid.UUID, items []domain.LineRequest) (*domain.Order, error) {
	order, err := s.placeOrder(ctx, buyerID, items)
	metrics.RecordOrderCommit(commitOutcome(err))

	if err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) {
			s.logger.Error("Order commit failed",
				zap.String("buyer_id", buyerID.String()),
				zap.String("op", perr.Op),
				zap.Error(perr.Err),
			)
		} else {
			s.logger.Info("Order rejected",
				zap.String("buyer_id", buyerID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("Order committed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Items)),
	)

	return order, nil
}

func (s *orderService) placeOrder(ctx context.Context, buyerID uuid.UUID, items []domain.LineRequest) (*domain.Order, error) {
	if err := domain.ValidateLineRequests(items); err != nil {
		return nil, err
	}
	lines, err := domain.MergeLineRequests(items)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	products, err := lockProducts(ctx, tx, lines)
	if err != nil {
		return nil, err
	}

	// Checked in request order so the reported line is the first offending one
	snapshots := make([]domain.LineSnapshot, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, &domain.ProductUnavailableError{ProductID: line.ProductID}
		}
		if line.Quantity > product.Stock {
			return nil, &domain.InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: product.Stock,
			}
		}
		snapshots = append(snapshots, domain.Snapshot(product, line.Quantity))
	}

	order, err := domain.BuildOrder(buyerID, snapshots, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "insert order", Err: err}
	}
	if err := tx.InsertLineItems(ctx, order.ID, order.Items); err != nil {
		return nil, &domain.PersistenceError{Op: "insert order items", Err: err}
	}

	for _, line := range lines {
		if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, &domain.InsufficientStockError{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: products[line.ProductID].Stock,
				}
			}
			return nil, &domain.PersistenceError{Op: "decrement stock", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.PersistenceError{Op: "commit order", Err: err}
	}

	return order, nil
}

// lockProducts takes row locks in ascending id order so two orders sharing
// products cannot deadlock. Missing products are left out of the result.
func lockProducts(ctx context.Context, tx repository.OrderTx, lines []domain.LineRequest) (map[uuid.UUID]*domain.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	products := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		product, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				continue
			}
			return nil, &domain.PersistenceError{Op: "lock product", Err: err}
		}
		products[id] = product
	}

	return products, nil
}

func commitOutcome(err error) string {
	var (
		unavailable  *domain.ProductUnavailableError
		insufficient *domain.InsufficientStockError
	)
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case domain.IsValidationError(err):
		return metrics.OutcomeValidationError
	case errors.As(err, &unavailable):
		return metrics.OutcomeProductUnavailable
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficientStock
	default:
		return metrics.OutcomePersistenceError
	}
}

// GetOrder returns an order to its buyer or to an admin
func (s *orderService) GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, role string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.BuyerID != requesterID && role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	return order, nil
}

// ListOrders returns the buyer's own orders, newest first
func (s *orderService) ListOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
