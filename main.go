package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier-service/cache"
	apperrors "courier-service/common/errors"
	"courier-service/common/logger"
	"courier-service/common/middleware"
	"courier-service/consumer"
	"courier-service/controllers"
	"courier-service/database"
	aws_pkg "courier-service/pkg/aws"
	"courier-service/providers"
	"courier-service/rates"
	"courier-service/registry"
	"courier-service/repository"
	"courier-service/routes"
	servicepkg "courier-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())

	var logSink io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil {
		cw, err := aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.CloudWatchGroup, "courier-service")
		if err != nil {
			log.Printf("CloudWatch Logs unavailable: %v", err)
		} else {
			logSink = cw
		}
	}
	zlog, err := logger.NewWithWriter(cfg.Env, logSink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	var (
		snsClient aws_pkg.SNSPublisher
		secrets   *aws_pkg.SecretsClient
		metrics   *aws_pkg.MetricsClient
	)
	if awsErr != nil {
		zlog.Warn("AWS config unavailable, SNS, SQS and metrics disabled", zap.Error(awsErr))
	} else {
		snsClient = aws_pkg.NewSNSClient(awsCfg)
		secrets = aws_pkg.NewSecretsClient(awsCfg)
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)
	}

	if err := database.Connect(cfg.Postgres, zlog); err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck

	// Partner cache: redis when configured so every replica shares it
	var partnerCache cache.Cache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zlog.Warn("Redis unavailable, using in-process partner cache", zap.Error(err))
		} else {
			defer rdb.Close() //nolint:errcheck
			partnerCache = cache.NewRedisCache(rdb, "courier:")
			zlog.Info("Connected to Redis")
		}
	}

	// Repositories
	shipmentRepo := repository.NewGormShipmentRepository(database.DB)
	rateCardRepo := repository.NewGormRateCardRepository(database.DB)
	overrideRepo := repository.NewGormOverrideRepository(database.DB)
	partnerRepo := repository.NewGormPartnerRepository(database.DB)

	registryOpts := []registry.Option{registry.WithTTL(cfg.PartnerCacheTTL)}
	clientOpts := []providers.ClientOption{providers.WithRateLimit(cfg.CourierRPS, cfg.CourierBurst)}
	if secrets != nil {
		registryOpts = append(registryOpts, registry.WithSecrets(secrets))
	}
	if metrics.IsEnabled() {
		registryOpts = append(registryOpts, registry.WithMetrics(metrics))
		clientOpts = append(clientOpts, providers.WithMetrics(metrics))
	}
	partners := registry.NewPartnerRegistry(partnerRepo, partnerCache, zlog, registryOpts...)

	// Adapters and DI chain
	httpClient := providers.NewClient(zlog, clientOpts...)
	adapters := providers.NewRegistry(providers.DefaultAdapters(httpClient, partners.Tokens(), zlog)...)

	engine := rates.NewEngine(rates.NewZoneClassifier(rates.DefaultZoneRules()), rates.NewWeightCalculator(cfg.DimensionalFactor))
	resolver := servicepkg.NewOverrideResolver(rateCardRepo, overrideRepo, zlog)
	rateService := servicepkg.NewRateService(engine, resolver, zlog)

	deps := servicepkg.OrchestratorDeps{
		Partners:  partners,
		Adapters:  adapters,
		Engine:    engine,
		Cards:     resolver,
		Shipments: shipmentRepo,
		Publisher: snsClient,
		Degraded:  servicepkg.NewDegradedModePolicy(cfg.DegradedMode, zlog),
	}
	if metrics.IsEnabled() {
		deps.Metrics = metrics
	}
	orchestrator := servicepkg.NewCourierOrchestrator(deps, servicepkg.OrchestratorConfig{
		SNSTopicArn:    cfg.ShippingSNSTopicARN,
		CourierTimeout: cfg.CourierTimeout,
		Concurrency:    cfg.ComparisonConcurrency,
	}, zlog)

	shippingController := controllers.NewShippingController(rateService, orchestrator, shipmentRepo)
	adminController := controllers.NewAdminController(partners, rateCardRepo, overrideRepo, zlog)

	// Partner change notifications from other replicas / admin tooling
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.PartnerEventsQueueURL != "" && awsErr == nil {
		events := consumer.NewPartnerEventsConsumer(partners, zlog)
		sqsConsumer := aws_pkg.NewSQSConsumer(awsCfg, cfg.PartnerEventsQueueURL, zlog)
		go func() {
			if err := sqsConsumer.StartPolling(consumerCtx, events.Handle); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("Partner events consumer stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(zlog))
	r.Use(middleware.RequestTimeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "courier-service"})
	})

	routes.RegisterShippingRoutes(r, shippingController)
	routes.RegisterAdminRoutes(r, adminController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Courier service started",
		zap.String("port", cfg.Port),
		zap.Strings("couriers", adapters.Codes()),
		zap.Bool("degraded_mode", cfg.DegradedMode),
	)
	<-quit
	zlog.Info("Shutting down courier service...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}
