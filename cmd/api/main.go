package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-accounting-ws/internal/cache"
	"go-accounting-ws/internal/config"
	"go-accounting-ws/internal/handler"
	"go-accounting-ws/internal/logger"
	"go-accounting-ws/internal/metrics"
	"go-accounting-ws/internal/middleware"
	"go-accounting-ws/internal/repository"
	"go-accounting-ws/internal/scheduler"
	"go-accounting-ws/internal/service"
	"go-accounting-ws/internal/ws"
	"go-accounting-ws/migrations"
	"go-accounting-ws/pkg/database"
	"go-accounting-ws/pkg/jwt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DSN(), cfg.App.Env == "development")
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zl.Fatal("failed to get sql.DB", zap.Error(err))
	}
	if err := migrations.Up(sqlDB); err != nil {
		zl.Fatal("failed to apply migrations", zap.Error(err))
	}
	zl.Info("database connected and migrated")

	// 3. Session cache
	var sessionCache cache.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		sessionCache = cache.NewRedis(rdb, "accounting", cfg.Session.TTL)
	} else {
		zl.Warn("REDIS_ADDR not set, document numbers are cached in process memory")
		sessionCache = cache.NewMemory(cfg.Session.TTL)
	}

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(zl.Named("ws"))
	go wsHub.Run()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	// 5. Dependency Injection (Wiring Layers)
	store := repository.NewLedgerRepo(db, repository.LedgerConfig{
		MaxRetries: cfg.Ledger.TxRetries,
		Backoff:    cfg.Ledger.TxBackoff,
	})
	userRepo := repository.NewUserRepo(db)
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)

	svcLog := zl.Named("service")
	categoryService := service.NewCategoryService(store, svcLog)
	numberingService := service.NewNumberingService(store, sessionCache, service.NumberingConfig{
		MaxAttempts:    cfg.Numbering.MaxAttempts,
		Backoff:        cfg.Numbering.Backoff,
		ReservationTTL: cfg.Session.TTL,
	}, m, svcLog)
	transferService := service.NewTransferService(store, wsHub, m, svcLog)
	reversalService := service.NewReversalService(store, categoryService, wsHub, m, svcLog)
	warehouseService := service.NewWarehouseService(store, numberingService, wsHub, svcLog)
	dashService := service.NewDashboardService(store, svcLog)
	profileService := service.NewProfileService(userRepo, tokens, svcLog)

	authHandler := handler.NewAuthHandler(profileService)
	profileHandler := handler.NewProfileHandler(profileService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	txHandler := handler.NewTransactionHandler(transferService, reversalService)
	invHandler := handler.NewInventoryHandler(warehouseService, numberingService)
	dashHandler := handler.NewDashboardHandler(dashService)

	reconciler, err := scheduler.Start(cfg.Reconcile.Schedule, categoryService, zl.Named("scheduler"))
	if err != nil {
		zl.Fatal("invalid reconcile schedule", zap.String("schedule", cfg.Reconcile.Schedule), zap.Error(err))
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	// Middleware
	app.Use(fiberlogger.New()) // Logging request
	app.Use(recover.New())     // Panic recovery
	app.Use(cors.New())        // CORS

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(userRepo, tokens))

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Delete("/profile", profileHandler.DeleteAccount)
	protected.Put("/profile/password", profileHandler.ChangePassword)

	protected.Get("/categories", categoryHandler.GetCategories)
	protected.Post("/categories", categoryHandler.CreateCategory)
	protected.Get("/categories/:id", categoryHandler.GetCategory)
	protected.Get("/categories/:id/transactions", categoryHandler.GetCategoryTransactions)
	protected.Post("/categories/:id/recalculate", categoryHandler.RecalculateBalance)

	protected.Post("/transfers", txHandler.Transfer)
	protected.Delete("/transactions/:id", txHandler.DeleteTransaction)

	protected.Get("/products", invHandler.GetProducts)
	protected.Post("/products", invHandler.CreateProduct)
	protected.Get("/documents/next-number", invHandler.NextDocumentNumber)
	protected.Delete("/documents/next-number", invHandler.ClearDocumentNumber)
	protected.Post("/documents", invHandler.CreateDocument)

	protected.Get("/dashboard/summary", dashHandler.GetSummary)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			zl.Panic("server stopped", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	zl.Info("shutting down")
	<-reconciler.Stop().Done()
	if err := app.Shutdown(); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		zl.Error("database close failed", zap.Error(err))
	}
}
