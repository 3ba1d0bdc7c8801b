package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"
	"shopfront/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxPageSize = 100

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Price       string `json:"price" validate:"required,decimal"`
	Stock       int    `json:"stock" validate:"gte=0,lte=2147483647"`
}

func (req ProductRequest) toInput() service.ProductInput {
	// Format already checked by the decimal validation tag
	price, _ := decimal.NewFromString(req.Price)
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
	}
}

// ProductResponse renders a product with its price fixed to two decimals
type ProductResponse struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		SellerID:    p.SellerID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProductListResponse is one page of the catalog
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ProductHandler handles catalog requests
type ProductHandler struct {
	productService service.ProductService
	maxImageBytes  int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, maxImageBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxImageBytes:  maxImageBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers catalog routes. Reviews are mounted below each product.
func (h *ProductHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler, reviews func(chi.Router)) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productID}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Use(middleware.RequireRole(h.logger, domain.RoleSeller, domain.RoleAdmin))
			r.Post("/", h.CreateProduct)
			r.Put("/{productID}", h.UpdateProduct)
			r.Delete("/{productID}", h.DeleteProduct)
			r.Post("/{productID}/image", h.UploadImage)
		})

		if reviews != nil {
			r.Route("/{productID}/reviews", reviews)
		}
	})
}

// ListProducts returns a page of products, optionally filtered by search text or seller
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repository.ProductFilter{
		Query:     query.Get("q"),
		Page:      1,
		PageSize:  20,
		SortBy:    query.Get("sort_by"),
		SortOrder: repository.SortOrder(strings.ToUpper(query.Get("sort_order"))),
	}

	var invalid []middleware.ValidationError
	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			invalid = append(invalid, middleware.ValidationError{Field: "page", Message: "Value must be greater than or equal to 1"})
		}
		filter.Page = page
	}
	if v := query.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > maxPageSize {
			invalid = append(invalid, middleware.ValidationError{Field: "page_size", Message: "Value must be between 1 and " + strconv.Itoa(maxPageSize)})
		}
		filter.PageSize = size
	}
	if v := query.Get("seller_id"); v != "" {
		sellerID, err := uuid.Parse(v)
		if err != nil {
			invalid = append(invalid, middleware.ValidationError{Field: "seller_id", Message: "Invalid identifier"})
		}
		filter.SellerID = &sellerID
	}
	if len(invalid) > 0 {
		middleware.RespondWithValidationErrors(w, invalid)
		return
	}

	products, total, err := h.productService.ListProducts(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err, h.logger, "list products")
		return
	}

	response := ProductListResponse{
		Products: make([]ProductResponse, 0, len(products)),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, p := range products {
		response.Products = append(response.Products, newProductResponse(p))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, h.logger, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// CreateProduct adds a product owned by the caller
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), userID, req.toInput())
	if err != nil {
		respondServiceError(w, err, h.logger, "create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), id, userID, role, req.toInput())
	if err != nil {
		respondServiceError(w, err, h.logger, "update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(r.Context(), id, userID, role); err != nil {
		respondServiceError(w, err, h.logger, "delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart form with an "image" file
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	// Leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+64<<10)

	file, _, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
			return
		}
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "image", Message: "This field is required"},
		})
		return
	}
	defer file.Close()

	product, err := h.productService.UploadImage(r.Context(), id, userID, role, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			middleware.RespondWithError(w, http.StatusUnsupportedMediaType, "image must be jpeg, png or webp")
		case errors.Is(err, storage.ErrTooLarge):
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, storage.ErrEmptyUpload):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			respondServiceError(w, err, h.logger, "upload image")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}
