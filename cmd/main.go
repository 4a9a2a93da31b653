package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"lease-service/internal/billing"
	"lease-service/internal/handler"
	"lease-service/internal/mailer"
	"lease-service/internal/middleware"
	"lease-service/internal/model"
	"lease-service/internal/signing"
	"lease-service/pkg/config"
	"lease-service/pkg/database"
	"lease-service/pkg/jwtutil"
	"lease-service/pkg/logger"
	"lease-service/pkg/metrics"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found or error loading: %v\n", err)
	}

	// Load configuration
	conf, err := config.Load("lease")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	// Initialize database connection
	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database")
	}

	// Run migrations for lease models
	if err := database.MigrateModels(
		&model.LeaseAgreement{},
		&model.LeaseSignature{},
		&model.Billing{},
		&model.Payment{},
	); err != nil {
		log.Fatal("Failed to migrate database models")
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	})

	// Initialize HTTP metrics
	httpMetrics := metrics.NewHTTPMetrics(conf.ServiceName)

	// Wire domain services
	mailSender := mailer.New(&conf.Mail)
	signingService := signing.NewService(db, mailSender, conf.OTP)
	evaluator := billing.NewEvaluator(db)

	leaseHandler := handler.NewLeaseHandler(signingService, db)
	billingHandler := handler.NewBillingHandler(evaluator)

	// Initialize Echo framework
	e := echo.New()

	// Apply middleware
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(httpMetrics.Middleware())

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/lease/hello", handler.Hello)

	// Secured routes - require authentication
	leases := e.Group("/leases")
	leases.Use(middleware.JWTAuthMiddleware(jwt))

	leases.POST("/otp/request", leaseHandler.RequestOtp)
	leases.POST("/otp/verify", leaseHandler.VerifyOtp)
	leases.GET("/:id", leaseHandler.GetLease)
	leases.POST("/:id/reconcile", leaseHandler.Reconcile)
	leases.GET("/:id/payment-due", billingHandler.GetPaymentDue)

	// Start server
	log.Info("Starting lease-service on port " + conf.Server.Port)
	e.Logger.Fatal(e.Start(":" + conf.Server.Port))
}
