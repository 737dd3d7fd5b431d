package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/glamexpress/config"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/Domenick1991/glamexpress/internal/notify"
	"github.com/Domenick1991/glamexpress/internal/telemetry"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("failed to read .env")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal("kafka brokers are required for the notification worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Telemetry.ServiceName += "-worker"
	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	notifier := notify.NewNotifier(nil, logger)

	logger.WithField("topic", cfg.Kafka.NotificationsTopic).Info("notification worker started")
	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		event, err := kafka.DecodeBookingEvent(msg)
		if err != nil {
			logger.WithError(err).Warn("skipping malformed event")
			return nil
		}
		if err := notifier.Handle(ctx, event); err != nil {
			logger.WithError(err).WithField("booking_id", event.BookingID).Error("notify")
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("consumer stopped")
		return
	}
	logger.Info("shutting down")
}
