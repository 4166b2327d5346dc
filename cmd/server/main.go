package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zariya-commerce/zariya/internal"
	"github.com/zariya-commerce/zariya/internal/billing"
	"github.com/zariya-commerce/zariya/internal/bootstrap"
	"github.com/zariya-commerce/zariya/internal/checkout"
	"github.com/zariya-commerce/zariya/internal/email"
	"github.com/zariya-commerce/zariya/internal/handler"
	"github.com/zariya-commerce/zariya/internal/handler/webhook"
	"github.com/zariya-commerce/zariya/internal/middleware"
	"github.com/zariya-commerce/zariya/internal/offer"
	"github.com/zariya-commerce/zariya/internal/order"
	"github.com/zariya-commerce/zariya/internal/postgres"
	"github.com/zariya-commerce/zariya/internal/realtime"
	"github.com/zariya-commerce/zariya/internal/router"
	"github.com/zariya-commerce/zariya/internal/routes"
	"github.com/zariya-commerce/zariya/internal/shipping"
	"github.com/zariya-commerce/zariya/internal/telemetry"
	"github.com/zariya-commerce/zariya/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over database/sql, which goose requires
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()
	logger.Info("Database migrations completed")

	// Application connection pool
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	logger.Info("Database connection established")

	// Development catalog
	if cfg.Env == "dev" {
		if err := bootstrap.SeedDevData(ctx, pool, logger); err != nil {
			return fmt.Errorf("dev seeding failed: %w", err)
		}
	}

	// Stores
	productStore := postgres.NewProductStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	offerStore := postgres.NewOfferStore(pool)

	// Stripe billing provider
	billingProvider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	logger.Info("Stripe billing provider initialized")

	// Carrier provider: live Shiprocket when credentials are present,
	// otherwise the flat-rate fallback carries every checkout.
	var carrier shipping.Provider
	if cfg.Shiprocket.Email != "" && cfg.Shiprocket.Password != "" {
		carrier, err = shipping.NewShiprocketProvider(shipping.ShiprocketConfig{
			BaseURL:  cfg.Shiprocket.BaseURL,
			Email:    cfg.Shiprocket.Email,
			Password: cfg.Shiprocket.Password,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Shiprocket provider: %w", err)
		}
		logger.Info("Shiprocket carrier provider initialized")
	} else {
		carrier = shipping.NewDisabledProvider()
		logger.Warn("No carrier credentials configured; live rates disabled")
	}

	// Email service
	smtpSender := email.NewSMTPSender(&email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}, logger)
	emailService, err := email.NewService(smtpSender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Order status broadcasting
	var broadcast realtime.Publisher = realtime.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := realtime.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		broadcast = natsPublisher
		logger.Info("NATS status broadcasting enabled", "url", cfg.NATS.URL)
	}

	// Business metrics
	telemetry.InitBusinessMetrics("zariya")

	// Services
	evaluator := offer.NewEvaluator(offerStore, logger)
	resolver := shipping.NewResolver(logger)

	checkoutService := checkout.NewService(
		productStore,
		orderStore,
		offerStore,
		evaluator,
		carrier,
		resolver,
		billingProvider,
		checkout.Policy{
			FreeShippingThresholdPaise: cfg.Shipping.FreeShippingThresholdPaise,
			FlatRatePaise:              cfg.Shipping.FlatRatePaise,
			PickupPincode:              cfg.Shipping.PickupPincode,
			DefaultItemWeightKg:        cfg.Shipping.DefaultItemWeightKg,
			SuccessURL:                 cfg.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:                  cfg.BaseURL + "/checkout/cancelled",
		},
		logger,
	)

	orderService := order.NewService(
		orderStore,
		productStore,
		productStore,
		billingProvider,
		carrier,
		emailService,
		broadcast,
		order.Policy{
			PickupPincode:              cfg.Shipping.PickupPincode,
			DefaultItemWeightKg:        cfg.Shipping.DefaultItemWeightKg,
			FreeShippingThresholdPaise: cfg.Shipping.FreeShippingThresholdPaise,
			FlatRatePaise:              cfg.Shipping.FlatRatePaise,
		},
		logger,
	)
	logger.Info("Services initialized")

	// Background expiry of abandoned prepaid orders
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	expiryWorker := worker.New(orderStore, orderService, worker.Config{}, logger)
	go expiryWorker.Start(workerCtx)

	// Handlers
	shippingHandler := handler.NewShippingHandler(checkoutService, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, orderService, logger)

	// Router
	metrics := middleware.NewMetrics("zariya")

	r := router.New(
		middleware.Recovery(),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(30*time.Second),
		middleware.WithRequestLogger(logger),
	)

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		ShippingHandler: shippingHandler,
		CheckoutHandler: checkoutHandler,
		OrderHandler:    orderHandler,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	})

	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY not set; admin endpoints will reject all requests")
	}
	adminRouter := r.Group(middleware.RequireAdminKey(cfg.AdminAPIKey))
	routes.RegisterAdminRoutes(adminRouter, routes.AdminDeps{
		OrderHandler: orderHandler,
	})

	// Serve with graceful shutdown
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
