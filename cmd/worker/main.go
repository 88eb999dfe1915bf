package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mlevanov/flightbooking/config"
	"github.com/mlevanov/flightbooking/internal/cache"
	"github.com/mlevanov/flightbooking/internal/db"
	"github.com/mlevanov/flightbooking/internal/email"
	"github.com/mlevanov/flightbooking/internal/kafka"
	"github.com/mlevanov/flightbooking/internal/pkg/logger"
	"github.com/mlevanov/flightbooking/internal/repository"
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

	pool, err := db.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTLSeconds)*time.Second)
	defer redisCache.Close()

	flightRepo := repository.NewFlightRepository(pool)
	flightService := flights.NewFlightService(flightRepo, redisCache)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, emailSender.Send); err != nil {
			logger.Warn("consumer stopped", zap.Error(err))
		}
	}()

	warmTicker := time.NewTicker(time.Duration(cfg.Worker.CacheWarmMinutes) * time.Minute)
	defer warmTicker.Stop()

	for {
		select {
		case <-warmTicker.C:
			if err := flightService.RefreshCache(ctx); err != nil {
				logger.Warn("refresh flight cache", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("worker shutting down")
			return
		}
	}
}
