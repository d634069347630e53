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
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/olap"
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

	store := olap.NewPostgresStore(db)
	proj := &olap.Projector{Store: store, Redis: rdb, Log: log}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "olap"
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.AllTopics, cfg.ConsumerWorkers, log)
	go func() {
		if err := cons.Start(ctx, proj.HandleEvent); err != nil {
			log.Fatal("consumer", zap.Error(err))
		}
	}()
	go proj.RunRefresh(ctx, cfg.OLAPRefreshInterval)

	router := httpx.NewRouter()
	h := &olap.Handler{Store: store}
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
	cancel()
}
