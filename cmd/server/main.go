package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/maribelle/backoffice/internal"
	"github.com/maribelle/backoffice/internal/auth"
	"github.com/maribelle/backoffice/internal/billing"
	"github.com/maribelle/backoffice/internal/commerce"
	"github.com/maribelle/backoffice/internal/events"
	"github.com/maribelle/backoffice/internal/handler"
	"github.com/maribelle/backoffice/internal/handler/webhook"
	"github.com/maribelle/backoffice/internal/middleware"
	"github.com/maribelle/backoffice/internal/relay"
	"github.com/maribelle/backoffice/internal/repository"
	"github.com/maribelle/backoffice/internal/router"
	"github.com/maribelle/backoffice/internal/service"
	"github.com/maribelle/backoffice/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application queries
	pool, err := repository.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	repo := repository.New(pool)

	// Supabase token verifier
	verifier := auth.NewSupabaseVerifier(cfg.Supabase.URL, cfg.Supabase.AnonKey)

	// WooCommerce client
	wooClient := commerce.NewClient(cfg.Woo.BaseURL, cfg.Woo.ConsumerKey, cfg.Woo.ConsumerSecret)

	// Stripe billing provider; shipping stays free-only without a key
	var billingProvider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}
		provider, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		billingProvider = provider
		logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, shipping payment intents disabled")
	}

	// Event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Nats.URL != "" {
		natsPublisher, err := events.NewNatsPublisher(cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS publisher initialized", "url", cfg.Nats.URL)
	}

	// Business metrics
	telemetry.NewBusinessMetrics("backoffice")

	// Batch validation service
	batchService, err := service.NewBatchValidationService(repo, wooClient, billingProvider, publisher, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize batch validation service: %w", err)
	}

	// Handlers
	batchHandler, err := handler.NewBatchHandler(batchService, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize batch handler: %w", err)
	}

	relayClient := relay.NewClient(cfg.Relay.Endpoint, cfg.Relay.Enseigne, cfg.Relay.PrivateKey)
	relayHandler, err := handler.NewRelayHandler(relayClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize relay handler: %w", err)
	}

	adminHandler, err := handler.NewAdminHandler(wooClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	// Prometheus HTTP metrics
	metrics := middleware.NewMetrics("backoffice")

	// Router
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		router.CORS(cfg.CORSOrigins),
		router.Logger(logger),
	)

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Customer endpoints require a Supabase session
	authed := r.Group(middleware.Authenticate(verifier, logger))
	authed.Post("/delivery-batches/validate", batchHandler.Validate)
	authed.Get("/delivery-batches/pending", batchHandler.Pending)
	authed.Post("/shipping/pickup-points", relayHandler.Search)

	// Operator endpoints behind the static admin token
	admin := r.Group(middleware.RequireAdminToken(cfg.AdminToken))
	admin.Put("/admin/orders/{id}/status", adminHandler.UpdateOrderStatus)

	// Stripe webhook; signature verification replaces auth here
	if billingProvider != nil {
		stripeWebhook, err := webhook.NewStripeHandler(billingProvider, repo, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe webhook handler: %w", err)
		}
		r.Post("/webhooks/stripe", stripeWebhook.HandleWebhook)
	}

	// Stuck claim reconciler
	if !cfg.Reconciler.Disabled {
		reconciler, err := service.NewReconciler(repo, logger, cfg.Reconciler.Interval, cfg.Reconciler.ClaimMaxAge)
		if err != nil {
			return fmt.Errorf("failed to initialize reconciler: %w", err)
		}
		go reconciler.Run(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), middleware.DefaultTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting server", "address", addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
