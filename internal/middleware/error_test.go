package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopfront/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	codes := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
	}

	properties.Property("error bodies carry code, message and an RFC3339 timestamp", prop.ForAll(
		func(message string, pick int) bool {
			statusCode := codes[pick%len(codes)]

			w := httptest.NewRecorder()
			RespondWithError(w, statusCode, message)

			if w.Code != statusCode || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Logf("FAIL: body is not JSON: %v", err)
				return false
			}

			if response.Error.Code != http.StatusText(statusCode) || response.Error.Message != message {
				return false
			}

			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func respondDomain(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	require.True(t, RespondWithDomainError(w, err))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestRespondWithDomainError(t *testing.T) {
	id := uuid.New()

	t.Run("validation", func(t *testing.T) {
		w, resp := respondDomain(t, domain.ErrEmptyOrder)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		errs := resp.Error.Details["validation_errors"].([]interface{})
		require.Len(t, errs, 1)
		assert.Equal(t, "items", errs[0].(map[string]interface{})["field"])
	})

	t.Run("unavailable", func(t *testing.T) {
		w, resp := respondDomain(t, &domain.ProductUnavailableError{ProductID: id})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, id.String(), resp.Error.Details["product_id"])
	})

	t.Run("insufficient stock", func(t *testing.T) {
		w, resp := respondDomain(t, &domain.InsufficientStockError{ProductID: id, Requested: 5, Available: 2})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, id.String(), resp.Error.Details["product_id"])
		assert.Equal(t, float64(5), resp.Error.Details["requested"])
		assert.Equal(t, float64(2), resp.Error.Details["available"])
	})

	t.Run("persistence hides cause", func(t *testing.T) {
		w, resp := respondDomain(t, &domain.PersistenceError{Op: "commit order", Err: errors.New("pq: secret detail")})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", resp.Error.Message)
	})

	t.Run("unrelated", func(t *testing.T) {
		w := httptest.NewRecorder()
		assert.False(t, RespondWithDomainError(w, errors.New("boom")))
		assert.Zero(t, w.Body.Len())
	})
}

func TestErrorHandlingMiddlewareRecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
