package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // For server closed checks
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // Signal numbers
	"time"      // Shutdown timeout

	"vcoin/internal/api"     // Custom package for API handlers
	"vcoin/internal/config"  // Custom package for configuration
	"vcoin/internal/db"      // Database connection
	"vcoin/internal/ledger"  // Ledger and sequencers
	"vcoin/internal/metrics" // Prometheus collectors
	"vcoin/internal/team"    // Team aggregation
	"vcoin/internal/utils"   // JWT keyring

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/go-playground/validator/v10"                  // Struct validation
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/redis/go-redis/v9"                            // Redis client
	"github.com/sirupsen/logrus"                              // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Redis is optional: it backs the listing cache and the member number sequence
	var redisClient *redis.Client
	var seq ledger.Sequencer = ledger.MetadataSequencer{}
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		seq = ledger.NewRedisSequencer(redisClient)
	}

	keys, err := utils.NewKeyring(cfg.JWTKeys, cfg.JWTActiveKID, cfg.JWTTTL)
	if err != nil {
		logrus.Fatalf("failed to load JWT keys: %v", err)
	}

	metrics.Init()
	deps := api.Deps{
		DB:       gdb,
		Redis:    redisClient,
		Ledger:   ledger.New(gdb, seq, ledger.NewConfigStore(gdb, validator.New())),
		Team:     team.NewService(gdb, team.ParsePolicy(cfg.TeamPolicy), cfg.SalesUnitPrice),
		Keys:     keys,
		CacheTTL: cfg.CacheTTL,
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.Register(r, deps)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown error: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logrus.Info("Server stopped")
}
