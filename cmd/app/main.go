package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/carbooking/api"
	"github.com/Domenick1991/carbooking/config"
	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/bootstrap"
	"github.com/Domenick1991/carbooking/internal/cleanup"
	"github.com/Domenick1991/carbooking/internal/clock"
	"github.com/Domenick1991/carbooking/internal/kafka"
	"github.com/Domenick1991/carbooking/internal/notify"
	"github.com/Domenick1991/carbooking/internal/reconciler"
	"github.com/Domenick1991/carbooking/internal/session"
	"github.com/Domenick1991/carbooking/internal/timer"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	sessions := session.NewRedisProvider(redisClient)
	sink := notify.NewKafkaSink(producer, cfg.Kafka.NotificationsTopic)
	backendClient := backend.NewClient(cfg.Backend, sessions)
	cleaner := cleanup.NewInvoker(backendClient, sink)

	store := reconciler.NewRedisStore(redisClient, cfg.Reconciler.SnapshotTTL())
	rec := reconciler.New(
		backendClient,
		sessions,
		cleaner,
		store,
		clock.Real{},
		cfg.Reconciler.Interval(),
		cfg.Reconciler.FollowUpDelay(),
	)
	go rec.Run(ctx)

	watches := timer.NewRegistry(clock.Real{}, cleaner)
	defer watches.Close()

	handler := api.NewBookingHandler(rec, cleaner, backendClient, watches)
	if err := bootstrap.Run(ctx, cfg, handler); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}
