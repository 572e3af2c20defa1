package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nourabuild/user-directory/internal/app"
	"github.com/nourabuild/user-directory/internal/sdk/sqldb"
	"github.com/nourabuild/user-directory/internal/services/jwt"
	"github.com/nourabuild/user-directory/internal/services/minio"
	"github.com/nourabuild/user-directory/internal/services/sentry"
	"github.com/nourabuild/user-directory/internal/services/users"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("GOMAXPROCS", "cpu", runtime.GOMAXPROCS(0))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 1. Initialize Database
	dbService := sqldb.New()
	defer dbService.Close()

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbService.EnsureSchema(setupCtx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	// 2. Initialize Services
	minioService, err := minio.NewMinioService()
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	if err := minioService.EnsureBucket(setupCtx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	sentryService := sentry.NewSentryService(logger)
	defer sentryService.Close()

	jwtService := jwt.NewTokenService()
	userService := users.NewService(dbService, minioService, logger)

	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer redisClient.Close()
		if err := redisClient.Ping(setupCtx).Err(); err != nil {
			logger.Warn("redis unreachable, api requests will fail until it recovers", "addr", addr, "error", err)
		}
	}
	rateLimit, _ := strconv.Atoi(os.Getenv("API_RATE_LIMIT"))

	// 3. Initialize App
	application := app.NewApp(app.Config{
		Logger:           logger,
		DB:               dbService,
		Bucket:           minioService,
		Users:            userService,
		Variants:         minioService,
		Sentry:           sentryService,
		Tokens:           jwtService,
		Redis:            redisClient,
		RateLimit:        rateLimit,
		DefaultAvatarURL: os.Getenv("DEFAULT_AVATAR_URL"),
	})
	go application.RunJanitor(ctx)

	// 4. Configure Server
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080 // Fallback default
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      application.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 5. Graceful Shutdown Logic
	done := make(chan bool, 1)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
		done <- true
	}()

	// 6. Start Server
	logger.Info("Starting server", "port", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	logger.Info("Graceful shutdown complete")
	return nil
}
