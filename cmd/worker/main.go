// Package main runs the background worker: notification emails, task risk evaluation and
// automatic closing of events past their end date.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusesi/backend/config"
	"github.com/nexusesi/backend/internal/alerts"
	"github.com/nexusesi/backend/internal/auth"
	"github.com/nexusesi/backend/internal/events"
	"github.com/nexusesi/backend/internal/mail"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/realtime"
	"github.com/nexusesi/backend/internal/tasks"
	"github.com/nexusesi/backend/internal/worker"
	"github.com/nexusesi/backend/pkg/database"
	"github.com/nexusesi/backend/pkg/queue"
	"github.com/nexusesi/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	// Publish only: API instances own the websocket connections.
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger), nil)

	userRepo := auth.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewDispatcher(notificationRepo, hub, jobQueue, userRepo, logger)

	sender := mail.NewSender(cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	emailProcessor := worker.NewEmailProcessor(jobQueue, sender, notificationRepo, logger)

	evaluator := alerts.NewEvaluator(tasks.NewRepository(pool), alerts.NewRepository(pool), dispatcher, nil, logger)
	riskLoop := worker.NewPeriodic("risk", cfg.Worker.RiskInterval, func(ctx context.Context) error {
		res, err := evaluator.Evaluate(ctx)
		if err != nil {
			return err
		}
		logger.Info("risk evaluation finished",
			zap.Int("evaluated", res.Evaluated),
			zap.Int("changed", res.Changed),
			zap.Int("alerts", res.Alerts),
		)
		return nil
	}, logger)

	eventSvc := events.NewService(events.NewRepository(pool), dispatcher, logger)
	closeLoop := worker.NewPeriodic("event-close", cfg.Worker.EventCloseInterval, func(ctx context.Context) error {
		n, err := eventSvc.FinishDue(ctx)
		if n > 0 {
			logger.Info("events closed", zap.Int("count", n))
		}
		return err
	}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){emailProcessor.Run, riskLoop.Run, closeLoop.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workerCtx)
		}(run)
	}
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
