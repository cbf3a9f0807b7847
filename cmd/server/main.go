// Package main runs the voting service HTTP server with graceful shutdown.
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

	"github.com/homecouncil/voting-service/config"
	"github.com/homecouncil/voting-service/internal/auth"
	"github.com/homecouncil/voting-service/internal/middleware"
	"github.com/homecouncil/voting-service/internal/ownership"
	"github.com/homecouncil/voting-service/internal/voting"
	"github.com/homecouncil/voting-service/pkg/database"
	"github.com/homecouncil/voting-service/pkg/queue"
	"github.com/homecouncil/voting-service/pkg/redis"
	"github.com/homecouncil/voting-service/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	ownersClient := ownership.NewClient(cfg.Apartments, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	tallyCache := voting.NewTallyCache(rdb.Client, logger)

	votingRepo := voting.NewRepository(pool)
	votingService := voting.NewService(votingRepo, ownersClient, jobQueue, tallyCache, logger)
	votingHandler := voting.NewHandler(votingService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/healthz", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/votings", middleware.RequireRole("admin"), votingHandler.Create)
		api.GET("/votings", votingHandler.List)
		api.GET("/votings/my", votingHandler.ListMine)
		api.GET("/votings/:id", votingHandler.GetByID)
		api.POST("/votings/:id/vote", votingHandler.SubmitWebVote)
	}

	// Internal routes (telegram bot service)
	internal := router.Group("/internal")
	internal.Use(middleware.ServiceToken(cfg.Bot.ServiceToken))
	{
		internal.POST("/votings/:id/telegram-vote", votingHandler.SubmitTelegramVote)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
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
