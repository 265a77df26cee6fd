package main

import (
	"context"
	"log"
	"strings"
	"time"

	"storefront-backend/config"
	"storefront-backend/controllers"
	"storefront-backend/database"
	apperrors "storefront-backend/errors"
	"storefront-backend/kafka"
	"storefront-backend/middleware"
	"storefront-backend/repository"
	"storefront-backend/routes"
	"storefront-backend/services"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to mongo", zap.Error(err))
	}
	defer database.Close(context.Background(), client)

	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("Failed to ensure indexes", zap.Error(err))
	}

	// Repositories
	txRepo := repository.NewTransactionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Redis catalog cache; the app runs without it if redis is down.
	var cache *services.CacheManager
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		cache = services.NewCacheManager(redis.NewClient(opts), logger)
	} else {
		logger.Warn("Invalid redis URL, catalog cache disabled", zap.Error(err))
	}

	// AWS: SNS order events plus S3 presigned uploads.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	var orderEvents services.OrderEventPublisher
	if cfg.OrderSNSTopicARN != "" {
		publisher, err := services.NewSNSPublisher(awsCfg, cfg.OrderSNSTopicARN)
		if err != nil {
			logger.Fatal("Failed to initialize SNS publisher", zap.Error(err))
		}
		orderEvents = publisher
	}

	paymentProducer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaPaymentTopic, logger)
	defer paymentProducer.Close()

	gateway := services.NewPaystackClient(services.PaystackConfig{
		SecretKey:     cfg.PaystackSecretKey,
		WebhookSecret: cfg.PaystackWebhookSecret,
		BaseURL:       cfg.PaystackBaseURL,
	})

	notifier := services.NewSMTPNotifier(services.EmailConfig{
		SmtpServer:  cfg.SMTPServer,
		SmtpPort:    cfg.SMTPPort,
		SenderEmail: cfg.SMTPEmail,
		SenderPass:  cfg.SMTPPassword,
		SenderName:  cfg.SMTPSenderName,
	}, logger)

	// Services
	identitySvc := services.NewIdentityService(userRepo, logger)
	inventorySvc := services.NewInventoryService(productRepo, logger)
	ledgerSvc := services.NewTransactionService(txRepo, orderRepo, logger)
	userSvc := services.NewUserService(userRepo, orderRepo, notifier, cfg.JWTSecret, cfg.JWTExpireDays, logger)
	orderSvc := services.NewOrderService(orderRepo, notifier, orderEvents, logger)
	productSvc := services.NewProductService(productRepo, cache, awsCfg, cfg.S3Bucket, cfg.S3Prefix, logger)
	checkoutSvc := services.NewCheckoutService(services.CheckoutDeps{
		Transactions: txRepo,
		Orders:       orderRepo,
		Gateway:      gateway,
		Identity:     identitySvc,
		Inventory:    inventorySvc,
		Ledger:       ledgerSvc,
		Notifier:     notifier,
		Events:       paymentProducer,
		OrderEvents:  orderEvents,
		FrontendURL:  cfg.FrontendURL,
		Logger:       logger,
	})

	// HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(apperrors.ErrorMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-paystack-signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	routes.Register(r, routes.Controllers{
		Checkout:     controllers.NewCheckoutController(checkoutSvc),
		Transactions: controllers.NewTransactionController(checkoutSvc, ledgerSvc, gateway, logger),
		Orders:       controllers.NewOrderController(orderSvc),
		Users:        controllers.NewUserController(userSvc, logger),
		Products:     controllers.NewProductController(productSvc),
		UserService:  userSvc,
	})

	logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
