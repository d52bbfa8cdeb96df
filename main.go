package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"academy-svc/ai"
	"academy-svc/cache"
	"academy-svc/config"
	"academy-svc/database"
	"academy-svc/email"
	"academy-svc/entitlement"
	"academy-svc/handlers"
	"academy-svc/kafka"
	"academy-svc/middleware"
	"academy-svc/payments"
	"academy-svc/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration; missing secrets fail here, not at first use
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize Kafka consumer
	consumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("academy-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Initialize object storage
	store, err := storage.NewS3Store(context.Background(), cfg.ContentBucket)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	stripeClient := payments.NewClient(cfg.StripeSecretKey)
	mailer := email.NewClient(cfg.ResendAPIKey)
	gateway := ai.NewClient(cfg.AIGatewayKey, cfg.AIGatewayURL)
	verifier := entitlement.NewVerifier(db, redisClient, logger)

	// Start confirmation email dispatcher in background
	go func() {
		if err := kafka.StartConsumer(consumer, mailer, logger); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	checkoutHandler := handlers.NewCheckoutHandler(db, stripeClient, cfg, logger)
	webhookHandler := handlers.NewWebhookHandler(db, producer, cfg.StripeWebhookSecret, logger)
	verifyHandler := handlers.NewVerifyHandler(verifier, logger)
	authHandler := handlers.NewAuthHandler(db, []byte(cfg.JWTSecret), logger)
	contentHandler := handlers.NewContentHandler(db, store, logger)
	activitiesHandler := handlers.NewActivitiesHandler(gateway, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("academy-svc"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api")
	api.POST("/checkout", checkoutHandler.CreateCheckoutSession)
	api.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)
	api.POST("/purchases/verify", verifyHandler.VerifyPurchase)
	api.GET("/purchases/verify/wait", verifyHandler.WaitForCompletion)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired([]byte(cfg.JWTSecret), logger))
	protected.GET("/content/:bundleType",
		middleware.EntitlementRequired(verifier, middleware.BundleFromParam("bundleType"), logger),
		contentHandler.ListBundleContent)
	protected.GET("/content/:bundleType/download",
		middleware.EntitlementRequired(verifier, middleware.BundleFromParam("bundleType"), logger),
		contentHandler.DownloadContent)
	protected.POST("/activities/story",
		middleware.EntitlementRequired(verifier, middleware.BundleFixed("bma-bundle"), logger),
		activitiesHandler.GenerateStory)

	// Start REST server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Academy Service started on :" + cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
