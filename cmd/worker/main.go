package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/carbooking/config"
	"github.com/Domenick1991/carbooking/internal/kafka"
	"github.com/Domenick1991/carbooking/internal/push"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Delivery worker: consumes notification events produced by the gateway and
// hands them to the push gateway.
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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := push.NewSender()

	logrus.WithField("topic", cfg.Kafka.NotificationsTopic).Info("notification worker started")

	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		var event kafka.Notification
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logrus.WithError(err).Warn("skipping malformed notification")
			return nil
		}
		return sender.Deliver(ctx, event)
	})
	if err != nil && ctx.Err() == nil {
		logrus.Fatalf("consumer stopped: %v", err)
	}

	logrus.Info("notification worker stopped")
}
