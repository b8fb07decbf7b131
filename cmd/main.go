/*
Package main is the entry point for the Flipside server.

It loads the configuration, initializes the global logger, connects Postgres,
Redis and the AWS services, serves HTTP and WebSocket traffic, and on SIGINT or
SIGTERM shuts everything down in reverse dependency order.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	"flipside/internal/app/auth"
	"flipside/internal/app/chat"
	"flipside/internal/app/customer"
	"flipside/internal/app/db"
	"flipside/internal/app/notify"
	"flipside/internal/app/pubsub"
	"flipside/internal/app/storage"
	"flipside/internal/app/user"
	"flipside/internal/app/verification"
	"flipside/internal/configs"
	"flipside/internal/handler"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/awsx"
	"flipside/internal/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("pinpoint", cfg.PinpointEnabled()).
		Bool("storage", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logx.Fatal(err, "Invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logx.Fatal(err, "Failed to connect to Redis")
	}

	bus := pubsub.New(pubsub.NewRedisTransport(rdb), pubsub.Options{})
	if err := bus.Connect(ctx); err != nil {
		logx.Fatal(err, "Failed to connect the pub/sub bus")
	}

	awsCfg, err := awsx.LoadConfig(ctx, awsx.Options{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to load AWS configuration")
	}

	sender, err := newSender(cfg, awsCfg)
	if err != nil {
		logx.Fatal(err, "Failed to create the notification sender")
	}

	files, err := newStorage(cfg, awsCfg)
	if err != nil {
		logx.Fatal(err, "Failed to create the photo storage")
	}

	signer, err := jwt.NewSigner(cfg.SecretKey)
	if err != nil {
		logx.Fatal(err, "Failed to create the token signer")
	}
	kinds, err := user.NewKinds(signer, queries, cfg.UserAccessTokenLifetime, cfg.UserRefreshTokenLifetime)
	if err != nil {
		logx.Fatal(err, "Failed to declare user token kinds")
	}

	codes := verification.NewStore(rdb, sender, verification.Options{
		Length: cfg.VerificationCodeLength,
		TTL:    cfg.VerificationCodeTTL,
	})

	manager := chat.NewManager(chat.NewChatWorker(queries), bus)

	deps := &handler.AppDeps{
		Config:    cfg,
		Kinds:     kinds,
		Auth:      auth.NewService(queries, codes, kinds),
		Customers: customer.NewService(queries, files),
		History:   chat.NewHistory(queries),
		Manager:   manager,
	}

	limits := handler.NewLimiters()
	defer limits.Stop()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(deps, limits),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Flipside server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Hijacked WebSocket connections are not tracked by the server; the
	// manager closes them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server forced to shutdown")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Chat sessions did not finish in time")
	}
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Pub/sub bus shutdown failed")
	}
	if err := rdb.Close(); err != nil {
		logx.Error(err, "Redis client close failed")
	}
	pool.Close()

	logx.Info("Server gracefully stopped.")
}

func newSender(cfg *configs.AppConfig, awsCfg aws.Config) (notify.Sender, error) {
	if !cfg.PinpointEnabled() {
		logx.Warn("PINPOINT_PROJECT_ID is not set, verification codes are only logged")
		return notify.NewLogSender(), nil
	}

	return notify.NewPinpointSender(awsCfg, notify.PinpointConfig{
		ProjectID:         cfg.PinpointProjectID,
		OriginationNumber: cfg.PinpointOriginationNumber,
		MessageType:       cfg.PinpointMessageType,
		FromEmail:         cfg.PinpointFromEmail,
	})
}

// newStorage returns nil when no bucket is configured; photo endpoints then fail with 502.
func newStorage(cfg *configs.AppConfig, awsCfg aws.Config) (storage.Storage, error) {
	if !cfg.StorageEnabled() {
		logx.Warn("S3_BUCKET_NAME is not set, photo uploads are disabled")
		return nil, nil
	}

	return storage.NewS3Storage(awsCfg, storage.Config{
		Bucket:   cfg.S3BucketName,
		Endpoint: cfg.S3Endpoint,
	})
}
