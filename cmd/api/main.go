package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abytech-hub/notification-core/internal/config"
	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/abytech-hub/notification-core/internal/infrastructure/dynamo"
	jwtinfra "github.com/abytech-hub/notification-core/internal/infrastructure/jwt"
	"github.com/abytech-hub/notification-core/internal/infrastructure/sns"
	webpushinfra "github.com/abytech-hub/notification-core/internal/infrastructure/webpush"
	transporthttp "github.com/abytech-hub/notification-core/internal/transport/http"
	"github.com/abytech-hub/notification-core/internal/transport/ws"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	setupLogger(cfg)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	dynamoClient, err := dynamo.NewClient(context.Background(), cfg)
	if err != nil {
		slog.Error("dynamo client", "error", err)
		os.Exit(1)
	}
	if err := dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables); err != nil {
		slog.Warn("dynamo bootstrap incomplete", "error", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("jwt provider", "error", err)
		os.Exit(1)
	}

	var pushSender webpushinfra.Sender
	switch s, err := webpushinfra.NewSender(cfg); {
	case err == nil:
		pushSender = s
	case errors.Is(err, domain.ErrPushDisabled):
		slog.Warn("web push disabled: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY not set")
	default:
		slog.Error("web push sender", "error", err)
		os.Exit(1)
	}

	publisher, err := sns.NewPublisher(cfg)
	if err != nil {
		slog.Warn("SNS publisher not available, events will not be published", "error", err)
		publisher = sns.Nop{}
	}

	deps := &transporthttp.Deps{
		SubscriptionRepo: dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications, cfg.DynamoTables.Inbox),
		PushSender:       pushSender,
		Publisher:        publisher,
		Hub:              ws.NewHub(),
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "push", pushSender != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
