package transport

import (
	"net/http"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemRequest is one requested line
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=2147483647"`
}

// PlaceOrderRequest is the body of POST /api/orders.
// An empty item list is rejected by the order service.
type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,dive"`
}

// OrderItemResponse renders one order line
type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// OrderResponse renders an order with amounts fixed to two decimals
type OrderResponse struct {
	ID        string              `json:"id"`
	BuyerID   string              `json:"buyer_id"`
	Status    string              `json:"status"`
	Total     string              `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
	Items     []OrderItemResponse `json:"items"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	response := OrderResponse{
		ID:        order.ID.String(),
		BuyerID:   order.BuyerID.String(),
		Status:    string(order.Status),
		Total:     order.Total.StringFixed(2),
		CreatedAt: order.CreatedAt,
		Items:     make([]OrderItemResponse, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		response.Items = append(response.Items, OrderItemResponse{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	return response
}

// OrderHandler handles order placement and order history
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers order routes. Placement is limited to buyers and admins and sits behind limiter.
func (h *OrderHandler) RegisterRoutes(r chi.Router, auth, limiter func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(auth)
		r.With(
			middleware.RequireRole(h.logger, domain.RoleBuyer, domain.RoleAdmin),
			limiter,
		).Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{orderID}", h.GetOrder)
	})
}

// PlaceOrder commits the caller's order
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	items := make([]domain.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.LineRequest{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orderService.PlaceOrder(r.Context(), buyerID, items)
	if err != nil {
		respondServiceError(w, err, h.logger, "place order")
		return
	}

	w.Header().Set("Location", "/api/orders/"+order.ID.String())
	middleware.RespondWithJSON(w, http.StatusCreated, newOrderResponse(order))
}

// ListOrders returns the caller's orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), buyerID)
	if err != nil {
		respondServiceError(w, err, h.logger, "list orders")
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, newOrderResponse(order))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// GetOrder returns one order to its buyer or an admin
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID, userID, role)
	if err != nil {
		respondServiceError(w, err, h.logger, "get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newOrderResponse(order))
}
