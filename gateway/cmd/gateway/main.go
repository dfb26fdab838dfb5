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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crud-master/gateway/internal/config"
	"crud-master/gateway/internal/infrastructure/rabbitmq"
	"crud-master/gateway/internal/router"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("API Gateway starting...",
		zap.String("inventory_url", cfg.InventoryURL),
		zap.String("billing_queue", cfg.RabbitMQQueue))

	publisher := rabbitmq.NewPublisher(
		cfg.GetRabbitMQURL(),
		cfg.RabbitMQQueue,
		rabbitmq.Dial,
		appLogger.With(zap.String("component", "BillingPublisher")),
	)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing billing publisher", zap.Error(err))
		}
	}()

	r, err := router.NewRouter(cfg, publisher, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         cfg.GetListenAddr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("API Gateway started", zap.String("address", server.Addr))

	<-sigChan

	appLogger.Info("Shutting down API Gateway...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("API Gateway graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("API Gateway stopped.")
}

func newLogger(debug bool) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if debug {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}
