package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crud-master/billing/internal/app/orders"
	"crud-master/billing/internal/config"
	rabbitmq_handler "crud-master/billing/internal/handler/rabbitmq"
	"crud-master/billing/internal/infrastructure/database"
	"crud-master/billing/internal/infrastructure/rabbitmq"
	postgres_order_repo "crud-master/billing/internal/repository/order_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Debug {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Billing consumer starting...", zap.String("queue", cfg.RabbitMQQueue))

	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseConfig(), 10, 5*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	orderRepository := postgres_order_repo.NewOrderRepository(db, appLogger)
	orderService := orders.NewOrderService(orderRepository, appLogger)
	billingHandler := rabbitmq_handler.NewBillingConsumer(orderService, appLogger.With(zap.String("component", "BillingConsumer")))

	consumer := rabbitmq.NewConsumer(
		cfg.ConsumerConfig(),
		rabbitmq.Dial,
		billingHandler.HandleMessage,
		appLogger.With(zap.String("component", "RabbitMQConsumer")),
	)
	if err := consumer.Run(ctx); err != nil {
		appLogger.Error("Billing consumer stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("Billing consumer stopped.")
}
