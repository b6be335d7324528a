package main

import (
	"context"
	"fmt"
	"time"

	"tokocart/internal/cache"
	"tokocart/internal/config"
	"tokocart/internal/database"
	"tokocart/internal/handlers"
	"tokocart/internal/middleware"
	"tokocart/internal/repositories"
	"tokocart/internal/services"
	"tokocart/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startupTimeout = 30 * time.Second

// NewApp connects every dependency named by cfg and returns the HTTP app
// together with a cleanup func that releases them in reverse order. Redis
// and RabbitMQ are optional: when they are not configured or not reachable
// the cart cache and order events are disabled.
func NewApp(cfg *config.Config, log *zap.Logger) (*fiber.App, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Database ---
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := database.Close(db); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	})
	log.Info("database ready", zap.String("driver", cfg.DatabaseDriver))

	if cfg.SeedData {
		if err := database.Seed(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to seed database: %w", err)
		}
		log.Info("sample data seeded")
	}

	// --- Cart cache ---
	var cartCache cache.CartCache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, cart cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			cartCache = cache.NewRedisCache(client, cfg.CartCacheTTL)
			closers = append(closers, func() { _ = client.Close() })
			log.Info("cart cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	// --- Order events ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, order events disabled", zap.Error(err))
		} else {
			publisher = mqClient
			closers = append(closers, func() {
				if err := mqClient.Close(); err != nil {
					log.Warn("failed to close RabbitMQ client", zap.Error(err))
				}
			})
		}
	}

	// --- Services ---
	store := repositories.NewGORMStore(db, cfg.DBLockTimeout)
	authService := services.NewAuthService(store.Users(), cfg.JWTSecret, cfg.JWTTTL, log)
	productService := services.NewProductService(store.Products())
	cartService := services.NewCartService(store, cartCache, log)
	checkoutService := services.NewCheckoutService(store, cartCache, publisher, services.CheckoutConfig{
		MaxAttempts:  cfg.CheckoutMaxAttempts,
		RetryBackoff: cfg.CheckoutRetryBackoff,
	}, log)

	// --- Handlers ---
	validate := validator.New()
	api := &handlers.API{
		Auth:         handlers.NewAuthHandler(authService, validate, log),
		Products:     handlers.NewProductHandler(productService, log),
		Carts:        handlers.NewCartHandler(cartService, validate, log),
		Orders:       handlers.NewOrderHandler(checkoutService, log),
		Authenticate: middleware.AuthRequired(authService, log),
	}

	app := fiber.New(fiber.Config{AppName: "tokocart"})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", healthHandler(db, publisher != nil))
	api.RegisterRoutes(app.Group("/api/v1"))

	return app, cleanup, nil
}

func healthHandler(db *gorm.DB, eventsEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.StatusOK
		dbState := "up"
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			status = fiber.StatusServiceUnavailable
			dbState = "down"
		}

		events := "disabled"
		if eventsEnabled {
			events = "enabled"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   map[bool]string{true: "healthy", false: "unhealthy"}[status == fiber.StatusOK],
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
			"events":   events,
		})
	}
}
