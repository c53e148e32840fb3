package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sanxiaozi/fulfillment/internal/catalog"
	"github.com/sanxiaozi/fulfillment/internal/checkout"
	"github.com/sanxiaozi/fulfillment/internal/config"
	"github.com/sanxiaozi/fulfillment/internal/httpx"
	"github.com/sanxiaozi/fulfillment/internal/inventory"
	kafkax "github.com/sanxiaozi/fulfillment/internal/kafka"
	"github.com/sanxiaozi/fulfillment/internal/logx"
	"github.com/sanxiaozi/fulfillment/internal/orders"
	"github.com/sanxiaozi/fulfillment/internal/payment"
	"github.com/sanxiaozi/fulfillment/internal/postgres"
	"github.com/sanxiaozi/fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log := logx.New()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prodCreated.Start(ctx)
	prodPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	prodPaid.Start(ctx)

	orderRepo := &orders.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	engine := &inventory.Engine{
		Store: &inventory.PGStore{DB: db},
		Log:   log,
		Cap:   cfg.BackorderCap,
	}

	adapter := &payment.Adapter{
		Store:       orderRepo,
		Redis:       rdb,
		Producer:    prodPaid,
		Log:         log,
		ServiceName: cfg.ServiceName,
		MerchantID:  cfg.ECPay.MerchantID,
		HashKey:     cfg.ECPay.HashKey,
		HashIV:      cfg.ECPay.HashIV,
		CheckoutURL: cfg.ECPay.CheckoutURL,
		BaseURL:     cfg.PublicBaseURL,
	}

	svc := &checkout.Service{
		Catalog:           catalogRepo,
		Orders:            orderRepo,
		Engine:            engine,
		Producer:          prodCreated,
		Log:               log,
		ServiceName:       cfg.ServiceName,
		IDPrefix:          cfg.OrderIDPrefix,
		LeadTimeTag:       cfg.LeadTimeTag,
		GatewayName:       adapter.Name(),
		FreeShipThreshold: cfg.FreeShipThreshold,
		ShipFeeHome:       cfg.ShipFeeHome,
		ShipFeeCVS:        cfg.ShipFeeCVS,
	}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{Svc: svc, Log: log}).Register(router)
	(&httpx.AdminHandler{Orders: orderRepo, Catalog: catalogRepo, Log: log}).Register(router)
	(&httpx.PaymentHandler{Adapter: adapter, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prodCreated.Close()
	prodPaid.Close()
	cancel()
	prodCreated.WaitClosed()
	prodPaid.WaitClosed()
}
