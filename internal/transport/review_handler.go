package transport

import (
	"net/http"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReviewRequest is the body of a new review
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewHandler handles product review requests
type ReviewHandler struct {
	reviewService service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

// Routes returns the review routes, to be mounted under a product
func (h *ReviewHandler) Routes(auth func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.With(middleware.RequireRole(h.logger, domain.RoleBuyer, domain.RoleAdmin)).Post("/", h.CreateReview)
			r.Delete("/{reviewID}", h.DeleteReview)
		})
	}
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListReviews(r.Context(), productID)
	if err != nil {
		respondServiceError(w, err, h.logger, "list reviews")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathUUID(w, r, "productID")
	if !ok {
		return
	}

	var req ReviewRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	review, err := h.reviewService.CreateReview(r.Context(), productID, userID, req.Rating, req.Comment)
	if err != nil {
		respondServiceError(w, err, h.logger, "create review")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := currentUser(w, r)
	if !ok {
		return
	}
	reviewID, ok := pathUUID(w, r, "reviewID")
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(r.Context(), reviewID, userID, role); err != nil {
		respondServiceError(w, err, h.logger, "delete review")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
