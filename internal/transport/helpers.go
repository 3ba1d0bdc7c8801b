package transport

import (
	"errors"
	"net/http"

	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// decodeRequest reads and validates a JSON body, writing the 400 response itself on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathUUID parses a uuid route parameter
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: name, Message: "Invalid identifier"},
		})
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the identity placed in the context by the auth middleware
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, "", false
	}
	role, _ := middleware.GetUserRole(r.Context())
	return userID, role, true
}

var notFoundErrors = []error{
	repository.ErrProductNotFound,
	repository.ErrSellerNotFound,
	repository.ErrReviewNotFound,
	repository.ErrWishlistItemNotFound,
	repository.ErrOrderNotFound,
	repository.ErrUserNotFound,
}

// respondServiceError writes the response for an error returned by a service call.
// Anything unrecognised is logged and reported as a 500.
func respondServiceError(w http.ResponseWriter, err error, logger *zap.Logger, action string) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			middleware.RespondWithError(w, http.StatusNotFound, target.Error())
			return
		}
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, repository.ErrProductInUse), errors.Is(err, repository.ErrReviewAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInvalidProduct):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case middleware.RespondWithDomainError(w, err):
		logger.Debug("Request rejected", zap.String("action", action), zap.Error(err))
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
