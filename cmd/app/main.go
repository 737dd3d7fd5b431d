package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/glamexpress/api"
	"github.com/Domenick1991/glamexpress/config"
	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/backend"
	"github.com/Domenick1991/glamexpress/internal/bootstrap"
	"github.com/Domenick1991/glamexpress/internal/cache"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/Domenick1991/glamexpress/internal/service/booking"
	"github.com/Domenick1991/glamexpress/internal/service/payment"
	"github.com/Domenick1991/glamexpress/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
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
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	var bookingCache booking.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		bookingCache = redisCache
	} else {
		logger.Info("redis not configured, using in-process booking cache")
		bookingCache = cache.NewMemoryCache(cfg.Booking.CacheTTL(), time.Now)
	}

	factory := backend.NewFactory(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout()),
		backend.WithLogger(logger),
	)

	bookingOpts := []booking.BookingServiceOption{
		booking.WithCache(bookingCache),
		booking.WithLogger(logger),
		booking.WithLockTTL(cfg.Booking.ActionLockTTL()),
		booking.WithRemovalGrace(cfg.Booking.RemovalGrace()),
	}
	paymentOpts := []payment.CoordinatorOption{
		payment.WithLogger(logger),
		payment.WithTiming(cfg.Payment.InitialDelay(), cfg.Payment.PollInterval(), cfg.Payment.Timeout()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logger.WithError(err).Warn("kafka unreachable, events will be retried per publish")
		}
		bookingOpts = append(bookingOpts, booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic, cfg.Kafka.NotificationsTopic))
		paymentOpts = append(paymentOpts, payment.WithProducer(producer, cfg.Kafka.NotificationsTopic))
	}

	bookingService := booking.NewBookingService(func(sess *auth.Session) booking.BookingAPI {
		return factory.Client(sess)
	}, bookingOpts...)

	paymentOpts = append(paymentOpts, payment.WithBookings(bookingService))
	coordinator := payment.NewCoordinator(func(sess *auth.Session) payment.PaymentAPI {
		return factory.Client(sess)
	}, paymentOpts...)
	defer coordinator.Close()

	hub := api.NewHub(cfg.HTTP.AllowedOrigins, logger)
	defer hub.Close()

	gin.SetMode(gin.ReleaseMode)
	router := bootstrap.NewRouter(cfg, auth.NewParser(cfg.Auth.JWTSecret), api.Handlers{
		Bookings: api.NewBookingHandler(bookingService),
		Payments: api.NewPaymentHandler(coordinator, hub),
		Hub:      hub,
	}, logger)

	if err := bootstrap.Run(ctx, cfg, router, logger); err != nil {
		logger.WithError(err).Error("server error")
	}
}
