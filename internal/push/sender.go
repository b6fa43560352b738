package push

import (
	"context"

	"github.com/Domenick1991/carbooking/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender hands notifications to the push gateway. The actual gateway call is
// stubbed out; deployments plug their provider in here.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Deliver(ctx context.Context, n kafka.Notification) error {
	logrus.WithFields(logrus.Fields{
		"id":       n.ID,
		"position": n.Position,
	}).Infof("push notification delivered: %s", n.Message)
	return nil
}
