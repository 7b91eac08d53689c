// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unipool/internal/config"
	"unipool/internal/geocost"
	httptransport "unipool/internal/http"
	"unipool/internal/infra"
	"unipool/internal/modules/matching"
	"unipool/internal/modules/trip"
	"unipool/internal/notify"
	"unipool/internal/pricing"
	"unipool/internal/routing"
	"unipool/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}
	log := infra.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store trip.Store
	if cfg.DB.DSN == "memory" {
		// Single-process dev mode, no external services required.
		store = trip.NewMemStore()
		log.Warn("running with in-memory storage, state is lost on restart")
	} else {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.WithError(err).Fatal("postgres init")
		}
		defer dbPool.Close()
		store = trip.NewPostgresStore(dbPool)
	}

	var provider routing.Provider
	if cfg.Routing.GoogleAPIKey != "" {
		google, err := routing.NewGoogleProvider(cfg.Routing.GoogleAPIKey)
		if err != nil {
			log.WithError(err).Fatal("routing init")
		}
		provider = routing.NewCache(google, cfg.Routing.CacheTTL)
	} else {
		provider = routing.NewStaticProvider(cfg.Routing.SpeedMps)
		log.Info("no routing API key, using straight-line estimates")
	}

	var index *matching.Index
	var indexer trip.Indexer
	if cfg.Redis.Addr != "" {
		index = matching.NewIndex(infra.NewRedis(cfg.Redis.Addr))
		indexer = index
	}

	var settler trip.Settler
	if cfg.Stripe.APIKey != "" {
		settler = settlement.NewStripeSettler(cfg.Stripe.APIKey)
	}

	var notifier trip.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	tripSvc := trip.NewService(store, trip.Deps{
		Pricing:     pricing.NewService(cfg.Pricing),
		Routes:      provider,
		Settler:     settler,
		Notifier:    notifier,
		Indexer:     indexer,
		Log:         log,
		StartWindow: time.Duration(cfg.Trip.StartWindowMinutes) * time.Minute,
	})

	var prefilter matching.Prefilter
	if index != nil {
		prefilter = index
	}
	matchSvc := matching.NewService(store, geocost.NewModel(provider), prefilter, cfg.Matching, log)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(tripSvc, matchSvc, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
}
