package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"incident-pipeline/internal/config"
	"incident-pipeline/internal/logger"
	"incident-pipeline/internal/workflows"
)

var cfgFile string

// rootCmd is the incident pipeline CLI
var rootCmd = &cobra.Command{
	Use:   "starter",
	Short: "Incident pipeline CLI",
	Long: `Drive escalation workflows and outbound ticket deliveries.

Examples:
  starter start --id db-outage --title "Primary DB down" --severity critical --service db --runbook service-down
  starter ack --id db-outage --responder alice
  starter status --id db-outage
  starter ticket create --title "Pool pump noisy" --hotel hotel-porto
  starter ticket deliver --ticket TKT-00AB12CD34 --event ticket.updated`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(newStartCmd(), newAckCmd(), newResolveCmd(), newStatusCmd(), newTicketCmd())
}

// session is what every command needs to talk to Temporal.
type session struct {
	cfg     *config.Config
	log     *logrus.Logger
	client  client.Client
	starter *workflows.Starter
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func dial() (*session, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger.NewTemporalAdapter(log),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	starter := workflows.NewStarter(c, cfg.Temporal.TaskQueue, cfg.Escalation.Policies, cfg.Escalation.EvaluationInterval, workflows.DeliverySettings{
		MaxAttempts: cfg.OpenClaw.MaxAttempts,
		BaseDelay:   cfg.OpenClaw.BaseDelay,
		MaxDelay:    cfg.OpenClaw.MaxDelay,
	})
	return &session{cfg: cfg, log: log, client: c, starter: starter}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
