// Package main runs the background worker: the scheduler that closes expired
// votings and computes decisions, and the dispatcher that delivers queued
// notifications to the bot gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/homecouncil/voting-service/config"
	"github.com/homecouncil/voting-service/internal/notify"
	"github.com/homecouncil/voting-service/internal/scheduler"
	"github.com/homecouncil/voting-service/internal/voting"
	"github.com/homecouncil/voting-service/pkg/database"
	"github.com/homecouncil/voting-service/pkg/queue"
	"github.com/homecouncil/voting-service/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	votingRepo := voting.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	sched := scheduler.New(votingRepo, jobQueue, interval, logger)

	sender := notify.NewBotSender(cfg.Bot, logger)
	dispatcher := notify.NewDispatcher(jobQueue, sender, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(workerCtx)
	go dispatcher.Run(workerCtx)
	logger.Info("worker started", zap.Duration("sweep_interval", interval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
