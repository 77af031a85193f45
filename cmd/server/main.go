// Package main runs the NexusESI HTTP API with websocket notifications and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusesi/backend/config"
	"github.com/nexusesi/backend/internal/alerts"
	"github.com/nexusesi/backend/internal/auth"
	"github.com/nexusesi/backend/internal/committees"
	"github.com/nexusesi/backend/internal/events"
	"github.com/nexusesi/backend/internal/institutions"
	"github.com/nexusesi/backend/internal/meetings"
	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/internal/realtime"
	"github.com/nexusesi/backend/internal/tasks"
	"github.com/nexusesi/backend/pkg/database"
	"github.com/nexusesi/backend/pkg/queue"
	"github.com/nexusesi/backend/pkg/redis"
	"github.com/nexusesi/backend/pkg/response"
	"github.com/nexusesi/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Attachments are optional: without a region, progress and incident uploads are refused.
	var files tasks.Attachments
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.AttachmentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			files = s3Client
		}
	}

	response.RegisterJSONTagNames()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Repositories
	userRepo := auth.NewRepository(pool)
	institutionRepo := institutions.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	committeeRepo := committees.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)
	meetingRepo := meetings.NewRepository(pool)
	alertRepo := alerts.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)

	dispatcher := notifications.NewDispatcher(notificationRepo, hub, jobQueue, userRepo, logger)
	notifier := notifications.NewAsync(dispatcher, 256, 4, logger)
	defer notifier.Close()

	// Services
	authSvc := auth.NewService(userRepo, institutionRepo, jwtService, logger)
	institutionSvc := institutions.NewService(institutionRepo, logger)
	eventSvc := events.NewService(eventRepo, notifier, logger, events.WithReuseGate(policy.AllowReuse))
	committeeSvc := committees.NewService(committeeRepo, eventRepo, logger)
	riskAlerts := alerts.NewEvaluator(taskRepo, alertRepo, notifier, nil, logger)
	taskSvc := tasks.NewService(taskRepo, userRepo, files, notifier, logger, tasks.WithAssignmentAlerts(riskAlerts))
	meetingSvc := meetings.NewService(meetingRepo, eventRepo, committeeRepo, userRepo, notifier, logger,
		meetings.WithQRValidity(cfg.Meetings.QRValidity))

	h := handlers{
		auth:          auth.NewHandler(authSvc, logger),
		institutions:  institutions.NewHandler(institutionSvc, logger),
		events:        events.NewHandler(eventSvc, logger),
		committees:    committees.NewHandler(committeeSvc, logger),
		tasks:         tasks.NewHandler(taskSvc, logger),
		meetings:      meetings.NewHandler(meetingSvc, logger),
		alerts:        alerts.NewHandler(alertRepo, logger),
		notifications: notifications.NewHandler(notificationRepo, logger),
		ws:            realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.AllowedOrigins()), logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadMB) << 20
	registerRoutes(router, h, middleware.JWT(jwtService, userRepo), middleware.JWTQuery(jwtService, userRepo))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
