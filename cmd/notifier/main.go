package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sanxiaozi/fulfillment/internal/config"
	kafkax "github.com/sanxiaozi/fulfillment/internal/kafka"
	"github.com/sanxiaozi/fulfillment/internal/logx"
	"github.com/sanxiaozi/fulfillment/internal/notify"
	"github.com/sanxiaozi/fulfillment/internal/orders"
	"github.com/sanxiaozi/fulfillment/internal/redisx"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()

	log := logx.New()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		Mailer:      &notify.LogMailer{Log: log},
		Log:         log,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "paid-notifier")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPaid, workers, log)

	go func() {
		log.WithField("group", group).WithField("topic", orders.TopicOrderPaid).Info("notifier consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
