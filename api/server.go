package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tcpsweep/config"
	"tcpsweep/docs"
	"tcpsweep/scanner"
)

// Run wires the store, background workers and HTTP server, and serves until
// ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var (
		store       TaskStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = NewRedisStore(redisClient, cfg.TaskTTL)
		logger.Info("using redis task store", "addr", cfg.RedisAddr)
	} else {
		store = NewMemoryStore(1024)
		logger.Warn("REDIS_ADDR not set, using in-memory task store without rate limiting")
	}

	observer := scanner.NewLogObserver(logger.With("component", "scanner"), 4096)
	defer observer.Close()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	runner := NewTaskRunner(store, scanner.New(scanner.TCPProber{}, observer), logger)
	workers := runner.StartWorkers(workerCtx, cfg.APIWorkers)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	router := NewRouter(store, cfg, redisClient, logger)
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting tcpsweep API server", "addr", cfg.APIAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// NewRouter builds the gin engine. Authentication is enabled when cfg.APIKey
// is set and rate limiting when redisClient is non-nil.
func NewRouter(store TaskStore, cfg config.Config, redisClient *redis.Client, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(logger), SecurityHeadersMiddleware())

	router.GET("/healthz", healthHandler)

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	if cfg.APIKey != "" {
		v1.Use(AuthMiddleware(cfg.APIKey, logger))
	}
	if redisClient != nil {
		v1.Use(RateLimitMiddleware(redisClient, cfg.RateLimit, cfg.RateWindow, logger))
	}

	server := NewServer(store, ScanLimits{
		DefaultWorkers: cfg.ScanWorkers,
		MaxWorkers:     cfg.MaxScanWorkers,
		DefaultTimeout: cfg.ScanTimeout,
	})
	server.RegisterRoutes(v1)

	return router
}
