package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	commonmw "supply-service/common/middleware"
	"supply-service/common/logger"
	"supply-service/controllers"
	"supply-service/database"
	awspkg "supply-service/pkg/aws"
	"supply-service/repository"
	"supply-service/routes"
	servicepkg "supply-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "supply-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AWS clients
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var sinks []io.Writer
	if cfg.LogGroup != "" && awsErr == nil {
		if w, err := awspkg.NewCloudWatchLogsWriter(ctx, awsCfg, cfg.LogGroup, serviceName); err == nil {
			sinks = append(sinks, w)
		} else {
			log.Printf("CloudWatch Logs unavailable, logging to stdout only: %v", err)
		}
	}
	zlog, err := logger.New(cfg.Env, sinks...)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if awsErr != nil {
		zlog.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}

	db, err := database.ConnectPostgres(ctx, cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	var metrics awspkg.MetricsRecorder = awspkg.NopMetrics{}
	if cfg.CloudWatchOn && awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, true)
	}

	// Repositories and DI chain
	orderRepo := repository.NewGormOrderRepository(db)
	discrepancyRepo := repository.NewGormDiscrepancyRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	users := repository.NewGormUserDirectory(db)
	vendors := repository.NewGormVendorDirectory(db)

	notificationService := servicepkg.NewNotificationService(notificationRepo, users, metrics,
		servicepkg.NotificationServiceConfig{Concurrency: cfg.FanoutConcurrency}, zlog)

	inline := servicepkg.NewInlineSink(notificationService, zlog)
	events := buildEventSink(cfg, awsCfg, awsErr, inline, zlog)

	discrepancyService := servicepkg.NewDiscrepancyService(orderRepo, discrepancyRepo, events, metrics, nil, zlog)
	orderService := servicepkg.NewOrderService(orderRepo, vendors, discrepancyService, events, metrics,
		servicepkg.OrderServiceConfig{EditWindow: cfg.EditWindow}, zlog)

	// Queue consumer for events published through SNS
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if cfg.EventsQueueURL != "" && awsErr == nil {
		consumer := awspkg.NewSQSConsumer(awsCfg, cfg.EventsQueueURL, zlog)
		handler := servicepkg.NewEventConsumer(notificationService, zlog)
		go func() {
			defer close(consumerDone)
			if err := consumer.StartPolling(consumerCtx, handler.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("Event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestLogger(zlog))
	r.Use(commonmw.SecurityHeaders())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))

	limiter := commonmw.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin/10+1, 10*time.Minute)
	r.Use(commonmw.RateLimitMiddleware(limiter))
	go sweepLimiter(consumerCtx, limiter)

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(reqCtx)
		c.Next()
	})

	routes.RegisterRoutes(r, routes.Controllers{
		Orders:        controllers.NewOrderController(orderService),
		Discrepancies: controllers.NewDiscrepancyController(discrepancyService),
		Notifications: controllers.NewNotificationController(notificationService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Supply service started",
		zap.String("port", cfg.Port),
		zap.String("event_transport", cfg.EventTransport),
	)
	<-ctx.Done()
	zlog.Info("Shutting down supply service...")

	stopConsumer()
	<-consumerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := inline.Wait(shutdownCtx); err != nil {
		zlog.Warn("Notification fan-outs still running at exit", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}

// buildEventSink picks the configured transport. SNS falls back to inline
// fan-out when AWS is unavailable or a publish fails.
func buildEventSink(cfg *Config, awsCfg sdkaws.Config, awsErr error, inline *servicepkg.InlineSink, zlog *zap.Logger) servicepkg.EventSink {
	if cfg.EventTransport != TransportSNS {
		return inline
	}
	if awsErr != nil {
		zlog.Warn("EVENT_TRANSPORT=sns but AWS is unavailable, dispatching inline")
		return inline
	}
	if cfg.EventsQueueURL == "" {
		zlog.Warn("EVENT_TRANSPORT=sns without ORDER_EVENTS_QUEUE_URL; notifications are written only if another consumer drains the topic",
			zap.String("topic_arn", cfg.EventsTopicARN))
	}
	return servicepkg.NewSNSSink(awspkg.NewSNSClient(awsCfg), cfg.EventsTopicARN, inline, zlog)
}

func sweepLimiter(ctx context.Context, rl *commonmw.RateLimiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Sweep()
		}
	}
}
