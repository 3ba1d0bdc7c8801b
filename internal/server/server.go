package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopfront/internal/config"
	"shopfront/internal/database"
	custommiddleware "shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"
	"shopfront/internal/storage"
	"shopfront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewRedisClient connects to the redis instance used for rate limiting
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	router, err := newRouter(cfg, logger, db, redisClient)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server, nil
}

func newRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (chi.Router, error) {
	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	router.Get("/health", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())

	images, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image storage: %w", err)
	}
	uploadsPrefix := strings.TrimRight(cfg.Storage.PublicBaseURL, "/")
	if strings.HasPrefix(uploadsPrefix, "/") {
		router.Handle(uploadsPrefix+"/*", http.StripPrefix(uploadsPrefix, http.FileServer(http.Dir(cfg.Storage.UploadDir))))
	}

	// Repositories
	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	reviewRepo := repository.NewReviewRepository(sqlDB)
	wishlistRepo := repository.NewWishlistRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)
	orderStore := repository.NewOrderStore(sqlDB)

	// Services
	userService := service.NewUserService(userRepo, refreshTokenRepo, service.TokenSettings{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	})
	productService := service.NewProductService(productRepo, images, logger.Named("products"))
	reviewService := service.NewReviewService(reviewRepo, productRepo)
	wishlistService := service.NewWishlistService(wishlistRepo)
	orderService := service.NewOrderService(orderStore, orderRepo, logger.Named("orders"))

	// Handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productService, cfg.Storage.MaxUploadBytes, logger)
	reviewHandler := transport.NewReviewHandler(reviewService, logger)
	wishlistHandler := transport.NewWishlistHandler(wishlistService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(userService, logger)
	authLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rl:auth",
	}, logger)
	orderLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rl:orders",
	}, logger)

	userHandler.RegisterRoutes(router, authMiddleware, authLimiter)
	productHandler.RegisterRoutes(router, authMiddleware, reviewHandler.Routes(authMiddleware))
	wishlistHandler.RegisterRoutes(router, authMiddleware)
	orderHandler.RegisterRoutes(router, authMiddleware, orderLimiter)

	return router, nil
}

// healthHandler reports database and redis reachability. Redis only backs the
// rate limiter, so its loss degrades the status without failing the check.
func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := map[string]interface{}{}

		dbHealth := db.Health(r.Context())
		report["database"] = dbHealth

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		redisStatus := "up"
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}
		report["redis"] = map[string]string{"status": redisStatus}

		status := http.StatusOK
		switch {
		case dbHealth["status"] != "up":
			report["status"] = "down"
			status = http.StatusServiceUnavailable
		case redisStatus != "up":
			report["status"] = "degraded"
		default:
			report["status"] = "ok"
		}

		custommiddleware.RespondWithJSON(w, status, report)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
