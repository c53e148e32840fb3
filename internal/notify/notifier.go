package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/sanxiaozi/fulfillment/internal/kafka"
	"github.com/sanxiaozi/fulfillment/internal/orders"
	"github.com/sanxiaozi/fulfillment/internal/redisx"
)

// Mailer delivers the paid receipt. Actual rendering and SMTP live
// outside this service; LogMailer stands in for local runs.
type Mailer interface {
	SendPaidReceipt(ctx context.Context, to, paymentRef string, amount int) error
}

type LogMailer struct{ Log *logrus.Logger }

func (m *LogMailer) SendPaidReceipt(ctx context.Context, to, paymentRef string, amount int) error {
	m.Log.WithFields(logrus.Fields{
		"to":          to,
		"payment_ref": paymentRef,
		"amount":      amount,
	}).Info("paid receipt queued for delivery")
	return nil
}

// Service consumes order.paid events and hands each ref's receipt to
// the mailer once.
type Service struct {
	Redis       *redis.Client
	Mailer      Mailer
	Log         *logrus.Logger
	ServiceName string
}

func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}

	// consumer-side dedup on event id, the producer already guards
	// per-ref via the paid-notice claim
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}
	if err := s.Mailer.SendPaidReceipt(ctx, p.Email, p.PaymentRef, p.TotalAmount); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
