package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/billing"
	"github.com/pulse-erp/fulfillment/internal/config"
	"github.com/pulse-erp/fulfillment/internal/events"
	"github.com/pulse-erp/fulfillment/internal/httpx"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/postgres"
	"github.com/pulse-erp/fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodIssued := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicInvoiceIssued, 1024, log)
	prodIssued.Start(ctx)
	prodPaid := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicInvoicePaid, 1024, log)
	prodPaid.Start(ctx)

	svc := &billing.Service{
		Store:          billing.NewPostgresStore(db),
		ProducerIssued: prodIssued,
		ProducerPaid:   prodPaid,
		DueDays:        cfg.InvoiceDueDays,
		ServiceName:    cfg.ServiceName,
		Log:            log,
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "billing"
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.OrderTopics, cfg.ConsumerWorkers, log)
	bc := &billing.Consumer{Service: svc, Redis: rdb, Log: log}
	go func() {
		if err := cons.Start(ctx, bc.HandleOrderEvent); err != nil {
			log.Fatal("consumer", zap.Error(err))
		}
	}()

	router := httpx.NewRouter()
	h := &billing.Handler{Service: svc}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)

	prodIssued.Close()
	prodPaid.Close()
	cancel()
	prodIssued.WaitClosed()
	prodPaid.WaitClosed()
}
