package notify

import (
	"context"
	"time"

	"github.com/Domenick1991/carbooking/internal/kafka"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options controls how a toast is presented by the UI layer.
type Options struct {
	Duration time.Duration
	Position string
}

// Sink receives fire-and-forget user notifications. Implementations must not
// propagate failures back to the caller.
type Sink interface {
	Notify(ctx context.Context, message string, opts Options)
}

// KafkaSink publishes notifications to the notifications topic, where the
// delivery worker picks them up.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaSink(producer *kafka.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Notify(ctx context.Context, message string, opts Options) {
	event := kafka.Notification{
		ID:         uuid.NewString(),
		Message:    message,
		DurationMS: opts.Duration.Milliseconds(),
		Position:   opts.Position,
		CreatedAt:  time.Now(),
	}
	if err := s.producer.Publish(ctx, s.topic, event.ID, event); err != nil {
		logrus.WithError(err).Warn("failed to publish notification")
	}
}

// LogSink writes notifications to the log. Used when no broker is configured.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, message string, opts Options) {
	logrus.WithField("position", opts.Position).Info(message)
}
