package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/api"
	"github.com/jstittsworth/hr-optimizer/internal/metrics"
	"github.com/jstittsworth/hr-optimizer/internal/optimizer"
	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/internal/services"
	"github.com/jstittsworth/hr-optimizer/internal/websocket"
	"github.com/jstittsworth/hr-optimizer/pkg/config"
	"github.com/jstittsworth/hr-optimizer/pkg/database"
	"github.com/jstittsworth/hr-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	serviceLog := logger.WithService("hr-optimizer")

	db, err := database.Open(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		serviceLog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := connectRedis(cfg.RedisURL, serviceLog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cacheService := services.NewCacheService(redisClient, log)
	runStore := services.NewRunStore(db)
	metricsManager := metrics.NewManager()

	hub := websocket.NewHub(log, cfg.CorsOrigins)
	go hub.Run(ctx)

	opt := optimizer.NewOptimizer(cfg.MaxDPCells)
	runner := pipeline.NewRunner(
		pipeline.New(opt, log),
		cfg.OptimizationTimeoutDuration(),
		log,
		hub,
		metricsManager,
	)

	retention := services.NewRetentionService(runStore, cacheService, cfg.CleanupSchedule, cfg.RunRetention, log)
	retention.OnPurge(metricsManager.RecordPurged)
	if err := retention.Start(); err != nil {
		serviceLog.Errorf("Failed to start run retention: %v", err)
	}
	defer retention.Stop()

	router := api.NewRouter(api.Deps{
		DB:      db,
		Cache:   cacheService,
		Store:   runStore,
		Runner:  runner,
		Hub:     hub,
		Metrics: metricsManager,
		Limiter: services.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Config:  cfg,
		Logger:  log,
	})

	for _, route := range router.Routes() {
		serviceLog.Debugf("%s %s", route.Method, route.Path)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Runs may take up to the optimization timeout before the response
		WriteTimeout: cfg.OptimizationTimeoutDuration() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		serviceLog.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLog.Errorf("Server forced to shutdown: %v", err)
	}
	stop()

	serviceLog.Info("Server exited")
}

// connectRedis returns nil when Redis is unset or unreachable; the cache then
// runs in memory.
func connectRedis(url string, log *logrus.Entry) *redis.Client {
	if url == "" {
		log.Info("REDIS_URL not set, using in-memory cache")
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warnf("Invalid Redis URL, using in-memory cache: %v", err)
		return nil
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis unreachable, using in-memory cache: %v", err)
		client.Close()
		return nil
	}
	return client
}
