package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"incident-pipeline/internal/models"
	"incident-pipeline/internal/workflows"
)

func newStartCmd() *cobra.Command {
	var inc models.Incident
	var severity string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open an incident and start its escalation workflow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial()
			if err != nil {
				return err
			}
			defer s.Close()

			inc.Severity = models.Severity(severity)
			inc.Status = models.IncidentOpen
			inc.Source = "cli"
			inc.OpenedAt = time.Now().UTC()

			started, err := s.starter.Open(cmd.Context(), inc)
			if err != nil {
				return err
			}
			if !started {
				fmt.Fprintf(cmd.OutOrStdout(), "Incident %s is already open\n", inc.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started workflow %s\n", workflows.EscalationWorkflowID(inc.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&inc.ID, "id", "", "Incident id (required)")
	cmd.Flags().StringVar(&inc.Title, "title", "", "Incident title")
	cmd.Flags().StringVar(&inc.Summary, "summary", "", "Incident summary")
	cmd.Flags().StringVar(&severity, "severity", string(models.SeverityWarning), "critical, warning or info")
	cmd.Flags().StringVar(&inc.ServiceKey, "service", "", "Affected service key")
	cmd.Flags().StringVar(&inc.RunbookSlug, "runbook", "", "Runbook slug used to pick a remediation")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAckCmd() *cobra.Command {
	var id, responder string
	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge an incident, pausing its escalation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.starter.Ack(cmd.Context(), id, responder); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Incident %s acknowledged by %s\n", id, responder)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Incident id (required)")
	cmd.Flags().StringVar(&responder, "responder", "", "Responder name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var id, responder string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an incident, ending its escalation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.starter.Resolve(cmd.Context(), id, responder); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Incident %s resolved by %s\n", id, responder)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Incident id (required)")
	cmd.Flags().StringVar(&responder, "responder", "", "Responder name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the escalation state of an incident",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial()
			if err != nil {
				return err
			}
			defer s.Close()
			snapshot, err := s.starter.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, snapshot)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Incident id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
