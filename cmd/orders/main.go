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

	"github.com/pulse-erp/fulfillment/internal/config"
	"github.com/pulse-erp/fulfillment/internal/events"
	"github.com/pulse-erp/fulfillment/internal/httpx"
	"github.com/pulse-erp/fulfillment/internal/inventory"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/orders"
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

	prodPlaced := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderPlaced, 1024, log)
	prodPlaced.Start(ctx)
	prodCancelled := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCancelled, 1024, log)
	prodCancelled.Start(ctx)

	repo := &orders.Repo{DB: db}
	coord := &orders.Coordinator{
		Store:             repo,
		Inventory:         inventory.NewClient(cfg.InventoryURL),
		ProducerPlaced:    prodPlaced,
		ProducerCancelled: prodCancelled,
		Guard:             orders.NewRedisGuard(rdb),
		ServiceName:       cfg.ServiceName,
		Log:               log,
	}

	router := httpx.NewRouter()
	h := &orders.Handler{Repo: repo, Coordinator: coord}
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

	// close inboxes, let the write loops flush, then stop them
	prodPlaced.Close()
	prodCancelled.Close()
	cancel()
	prodPlaced.WaitClosed()
	prodCancelled.WaitClosed()
}
