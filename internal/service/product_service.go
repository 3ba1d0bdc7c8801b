package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"
	"shopfront/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the editable attributes of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// Validate checks catalog rules: a name, a positive price with at most two
// decimals that fits the price column, and stock within INTEGER range.
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "name is required"}
	}
	if !in.Price.IsPositive() {
		return &domain.ValidationError{Field: "price", Reason: "price must be greater than zero"}
	}
	if in.Price.GreaterThan(domain.MaxPrice) {
		return &domain.ValidationError{Field: "price", Reason: "price must not exceed " + domain.MaxPrice.StringFixed(2)}
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return &domain.ValidationError{Field: "price", Reason: "price must have at most two decimal places"}
	}
	if in.Stock < 0 {
		return &domain.ValidationError{Field: "stock", Reason: "stock must not be negative"}
	}
	if in.Stock > domain.MaxQuantity {
		return &domain.ValidationError{Field: "stock", Reason: "stock is too large"}
	}
	return nil
}

// ProductService defines catalog operations
type ProductService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, sellerID uuid.UUID, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id, actorID uuid.UUID, role string, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id, actorID uuid.UUID, role string) error
	UploadImage(ctx context.Context, id, actorID uuid.UUID, role string, image io.Reader) (*domain.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
	images      storage.ImageStore
	logger      *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, images storage.ImageStore, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		images:      images,
		logger:      logger,
	}
}

func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// CreateProduct adds a product owned by sellerID
func (s *productService) CreateProduct(ctx context.Context, sellerID uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
	)

	return product, nil
}

// UpdateProduct overwrites a product's attributes. Only the owning seller or an admin may do so.
func (s *productService) UpdateProduct(ctx context.Context, id, actorID uuid.UUID, role string, input ProductInput) (*domain.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	product, err := s.managedProduct(ctx, id, actorID, role)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.Price = input.Price
	product.Stock = input.Stock
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// DeleteProduct removes a product that no order references
func (s *productService) DeleteProduct(ctx context.Context, id, actorID uuid.UUID, role string) error {
	product, err := s.managedProduct(ctx, id, actorID, role)
	if err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	if product.ImageURL != "" {
		if err := s.images.Delete(product.ImageURL); err != nil {
			s.logger.Warn("Failed to remove product image",
				zap.String("product_id", id.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// UploadImage stores a new image for the product and replaces the previous one
func (s *productService) UploadImage(ctx context.Context, id, actorID uuid.UUID, role string, image io.Reader) (*domain.Product, error) {
	product, err := s.managedProduct(ctx, id, actorID, role)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Save(image)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.UpdateImage(ctx, id, url); err != nil {
		_ = s.images.Delete(url)
		return nil, err
	}

	if product.ImageURL != "" {
		if err := s.images.Delete(product.ImageURL); err != nil {
			s.logger.Warn("Failed to remove replaced image",
				zap.String("product_id", id.String()),
				zap.Error(err),
			)
		}
	}

	product.ImageURL = url
	return product, nil
}

func (s *productService) managedProduct(ctx context.Context, id, actorID uuid.UUID, role string) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if !product.CanBeManagedBy(actorID, role) {
		return nil, ErrForbidden
	}

	return product, nil
}
