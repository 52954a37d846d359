package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "taxservice/api/swagger" // swagger docs
	"taxservice/internal/cache"
	"taxservice/internal/config"
	"taxservice/internal/database"
	"taxservice/internal/handler"
	"taxservice/internal/logger"
	"taxservice/internal/metrics"
	"taxservice/internal/middleware"
	"taxservice/internal/repository"
	"taxservice/internal/service"
	"taxservice/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Tax Calculation API
// @version         1.0
// @description     Tax calculation engine with per-user calculation history.
// @host            localhost:9011
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	db, err := database.NewConnection(cfg.DSN(), database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	zapLogger.Info("Connected to PostgreSQL successfully")

	historyCache := newHistoryCache(cfg, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zapLogger)
	go wsHub.Run(ctx)

	secret := []byte(cfg.Auth.JWTSecret)

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	calcRepo := repository.NewCalculationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	userService := service.NewUserService(userRepo, auditRepo, txManager, service.TokenConfig{Secret: secret, TTL: cfg.Auth.TokenTTL}, zapLogger)
	calcService := service.NewCalculationService(calcRepo, historyCache, wsHub, zapLogger)
	auditService := service.NewAuditService(auditRepo)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, zapLogger)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, secret, cfg.Auth.TokenTTL, cfg.IsProduction())
	calcHandler := handler.NewCalculationHandler(calcService, secret, limiter)
	auditHandler := handler.NewAuditHandler(auditService, secret)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zapLogger), metrics.Instrument())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", middleware.RequireAuth(secret), func(c *gin.Context) {
		websocket.ServeWs(wsHub, c)
	})

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	calcHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("Server failed", zap.Error(err))
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	cancel()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zapLogger.Info("Server stopped")
}

// newHistoryCache returns the Redis cache when enabled and reachable, a no-op cache otherwise.
func newHistoryCache(cfg *config.Config, zapLogger *zap.Logger) cache.HistoryCache {
	if !cfg.Redis.Enabled {
		return cache.Noop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, calculation history will not be cached", zap.Error(err))
		_ = client.Close()
		return cache.Noop{}
	}

	zapLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return cache.NewRedisHistoryCache(client, cfg.Redis.HistoryTTL)
}
