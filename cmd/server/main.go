package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"incident-pipeline/internal/api"
	"incident-pipeline/internal/bridge"
	"incident-pipeline/internal/config"
	"incident-pipeline/internal/feed"
	"incident-pipeline/internal/logger"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/store"
	"incident-pipeline/internal/ticketing"
	"incident-pipeline/internal/watchdog"
	"incident-pipeline/internal/workflows"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Unable to open database")
	}
	audit := store.NewAudit(db, log)
	events := store.NewProcessedEvents(db)
	m := metrics.New()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger.NewTemporalAdapter(log),
	})
	if err != nil {
		log.WithError(err).Fatal("Unable to create Temporal client")
	}
	defer c.Close()

	starter := workflows.NewStarter(c, cfg.Temporal.TaskQueue, cfg.Escalation.Policies, cfg.Escalation.EvaluationInterval, workflows.DeliverySettings{
		MaxAttempts: cfg.OpenClaw.MaxAttempts,
		BaseDelay:   cfg.OpenClaw.BaseDelay,
		MaxDelay:    cfg.OpenClaw.MaxDelay,
	})

	registry, err := newRegistry(ctx, cfg.Redis, events, log)
	if err != nil {
		log.WithError(err).Fatal("Unable to build event registry")
	}
	tickets := ticketing.NewService(store.NewTickets(db), registry, audit, starter, log,
		ticketing.WithMetrics(m),
	)

	heartbeats := feed.NewStore(feed.DefaultPerService, m)
	if cfg.Kafka.Enabled() {
		reader := feed.NewKafkaReader(feed.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.HeartbeatTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer reader.Close()
		go feed.NewConsumer(reader, heartbeats, log).Run(ctx)
	}

	var opener watchdog.IncidentOpener
	if cfg.Watchdog.OpenIncidents {
		opener = starter
	}
	runner := watchdog.NewRunner(watchdog.RunnerConfig{
		Interval:   cfg.Watchdog.Interval,
		StaleAfter: cfg.Watchdog.StaleAfter,
	}, heartbeats, audit, opener, m, log)
	go runner.Run(ctx)

	handler := api.NewHandler(tickets, heartbeats, runner, m, log)
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Wrap(api.NewRouter(handler), log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Infof("Incident pipeline API listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
}

// newRegistry shares processed callback ids through Redis when enabled, and
// otherwise keeps them in memory, seeded from the database.
func newRegistry(ctx context.Context, cfg config.RedisConfig, events *store.ProcessedEvents, log logrus.FieldLogger) (bridge.Registry, error) {
	if cfg.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		log.WithField("addr", cfg.Addr).Info("Using Redis event registry")
		return bridge.NewRedisRegistry(rdb, cfg.KeyPrefix), nil
	}

	seen, err := events.All(ctx)
	if err != nil {
		return nil, err
	}
	reg := bridge.NewMemoryRegistry(seen...)
	log.WithField("seeded", reg.Len()).Info("Using in-memory event registry")
	return reg, nil
}
