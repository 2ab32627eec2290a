package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"incident-pipeline/internal/activities"
	"incident-pipeline/internal/config"
	"incident-pipeline/internal/logger"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/store"
	"incident-pipeline/internal/ticketing"
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
	log.Info("Starting incident pipeline worker...")

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Unable to open database")
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger.NewTemporalAdapter(log),
	})
	if err != nil {
		log.WithError(err).Fatal("Unable to create Temporal client")
	}
	defer c.Close()

	m := metrics.New()
	acts := &activities.Activities{
		Log:        log.WithField("component", "activities"),
		Audit:      store.NewAudit(db, log),
		Incidents:  store.NewIncidents(db),
		Sender:     ticketing.NewClient(cfg.OpenClaw.WebhookURL, cfg.OpenClaw.Timeout),
		Metrics:    m,
		NotifyURL:  cfg.Notify.WebhookURL,
		HTTPClient: &http.Client{Timeout: cfg.Notify.Timeout},
	}
	if cfg.Kafka.Enabled() {
		publisher := activities.NewKafkaPublisher(activities.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.RemediationTopic))
		defer publisher.Close()
		acts.Publisher = publisher
	} else {
		log.Warn("No Kafka brokers configured, remediation actions are logged only")
	}

	// Create worker
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflows.EscalationWorkflow)
	w.RegisterWorkflow(workflows.DeliveryWorkflow)

	// Register activities
	w.RegisterActivity(acts)

	metricsSrv := &http.Server{Addr: cfg.HTTP.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics listener stopped")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}()

	log.Infof("Worker listening on task queue: %s", cfg.Temporal.TaskQueue)

	// Start worker (blocks until interrupted)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.WithError(err).Error("Unable to start worker")
	}
}
