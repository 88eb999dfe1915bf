package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mlevanov/flightbooking/config"
	"github.com/mlevanov/flightbooking/internal/bootstrap"
	"github.com/mlevanov/flightbooking/internal/cache"
	"github.com/mlevanov/flightbooking/internal/db"
	"github.com/mlevanov/flightbooking/internal/kafka"
	"github.com/mlevanov/flightbooking/internal/pkg/logger"
	"github.com/mlevanov/flightbooking/internal/pkg/metrics"
	"github.com/mlevanov/flightbooking/internal/repository"
	"github.com/mlevanov/flightbooking/internal/service/booking"
	"github.com/mlevanov/flightbooking/internal/service/flights"
)

func main() {
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrationsPath != "" {
		if err := db.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTLSeconds)*time.Second)
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	m := metrics.New()

	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	flightService := flights.NewFlightService(flightRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		producer,
		cfg.Kafka.BookingTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithMetrics(m),
	)

	if err := bootstrap.Run(ctx, cfg, m, flightService, bookingService); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
