package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"tienda-pos/internal/config"
	custommiddleware "tienda-pos/internal/middleware"
	"tienda-pos/internal/repository"
	"tienda-pos/internal/service"
	"tienda-pos/internal/storage"
	"tienda-pos/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	Currency   service.CurrencyService
	Reconciler *service.Reconciler
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) (*Server, error) {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Image store backing product uploads
	images, err := storage.NewDiskImageStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	// Stored images are served as static files
	router.Handle(cfg.Uploads.BaseURL+"/*", http.StripPrefix(cfg.Uploads.BaseURL+"/",
		http.FileServer(http.Dir(cfg.Uploads.Dir))))

	// Redis client backing the write rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	rateRepo := repository.NewRateRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Initialize services
	currencyService := service.NewCurrencyService(rateRepo, settingsRepo, logger)
	ratesService := service.NewRatesService(rateRepo, currencyService, cfg.Rates.APIURL, logger)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, images, logger)
	statsService := service.NewStatsService(saleRepo, customerRepo)
	checkoutService := service.NewCheckoutService(productRepo, customerRepo, saleRepo, currencyService)
	paymentService := service.NewPaymentService(saleRepo, paymentRepo, currencyService)
	salesService := service.NewSalesService(saleRepo)
	reconciler := service.NewReconciler(saleRepo, cfg.Reconcile.Interval, logger)

	// Initialize handlers
	productHandler := transport.NewProductHandler(catalogService, logger)
	categoryHandler := transport.NewCategoryHandler(catalogService, logger)
	customerHandler := transport.NewCustomerHandler(statsService, logger)
	saleHandler := transport.NewSaleHandler(salesService, checkoutService, paymentService, logger)
	ratesHandler := transport.NewRatesHandler(ratesService, currencyService, logger)
	uploadHandler := transport.NewUploadHandler(images, logger)

	// Admin gate plus a rate limit on write-capable routes
	rateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:writes",
	}, logger)
	adminGate := custommiddleware.AdminOnly(cfg.Admin.Token, logger)
	adminOnly := func(next http.Handler) http.Handler {
		return rateLimit(adminGate(next))
	}

	// Register routes
	productHandler.RegisterRoutes(router, adminOnly)
	categoryHandler.RegisterRoutes(router, adminOnly)
	customerHandler.RegisterRoutes(router)
	saleHandler.RegisterRoutes(router, adminOnly)
	ratesHandler.RegisterRoutes(router, adminOnly)
	uploadHandler.RegisterRoutes(router, adminOnly)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		Currency:   currencyService,
		Reconciler: reconciler,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
