package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopfront/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loggedRouter(logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(logger))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(AuthMiddleware(testTokens, zap.NewNop())).Post("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusConflict, "insufficient stock")
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusInternalServerError, "internal server error")
	})
	return r
}

func completedEntry(t *testing.T, logs *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestLoggingRecordsRouteAndCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := loggedRouter(zap.New(core))

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, domain.RoleBuyer, time.Hour))
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := completedEntry(t, logs)
	fields := entry.ContextMap()
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "/api/orders/{id}", fields["route"])
	assert.Equal(t, userID.String(), fields["user_id"])
	assert.Equal(t, domain.RoleBuyer, fields["role"])
	assert.EqualValues(t, http.StatusConflict, fields["status"])
}

func TestLoggingAnonymousRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := loggedRouter(zap.New(core))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entry := completedEntry(t, logs)
	fields := entry.ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "/health", fields["route"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotContains(t, fields, "user_id")
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := loggedRouter(zap.New(core))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, zapcore.ErrorLevel, completedEntry(t, logs).Level)

	logs.TakeAll()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	entry := completedEntry(t, logs)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "unmatched", entry.ContextMap()["route"])
}
