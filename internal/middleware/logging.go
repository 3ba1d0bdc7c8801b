package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestIdentityKey struct{}

// requestIdentity is filled in by WithUser further down the chain so the
// completion log can name the caller.
type requestIdentity struct {
	userID uuid.UUID
	role   string
}

// LoggingMiddleware logs each request with its route, caller and outcome.
// Server errors log at error level and client errors at warn.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			identity := &requestIdentity{}
			r = r.WithContext(context.WithValue(r.Context(), requestIdentityKey{}, identity))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger.Debug("Request started",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("route", routePattern(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if identity.userID != uuid.Nil {
				fields = append(fields,
					zap.String("user_id", identity.userID.String()),
					zap.String("role", identity.role),
				)
			}

			level := zapcore.InfoLevel
			switch {
			case status >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case status >= http.StatusBadRequest:
				level = zapcore.WarnLevel
			}
			if ce := logger.Check(level, "Request completed"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

func recordIdentity(ctx context.Context, userID uuid.UUID, role string) {
	if identity, ok := ctx.Value(requestIdentityKey{}).(*requestIdentity); ok {
		identity.userID = userID
		identity.role = role
	}
}
