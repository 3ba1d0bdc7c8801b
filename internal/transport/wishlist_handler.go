package transport

import (
	"net/http"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WishlistRequest adds a product to the caller's wishlist
type WishlistRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// WishlistHandler handles wishlist requests
type WishlistHandler struct {
	wishlistService service.WishlistService
	logger          *zap.Logger
}

// NewWishlistHandler creates a new WishlistHandler
func NewWishlistHandler(wishlistService service.WishlistService, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
		logger:          logger,
	}
}

func (h *WishlistHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/wishlist", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(h.logger, domain.RoleBuyer, domain.RoleAdmin))
		r.Get("/", h.List)
		r.Post("/", h.Add)
		r.Delete("/{productID}", h.Remove)
	})
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	items, err := h.wishlistService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, h.logger, "list wishlist")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req WishlistRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.wishlistService.Add(r.Context(), userID, uuid.MustParse(req.ProductID)); err != nil {
		respondServiceError(w, err, h.logger, "add to wishlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.wishlistService.Remove(r.Context(), userID, productID); err != nil {
		respondServiceError(w, err, h.logger, "remove from wishlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
