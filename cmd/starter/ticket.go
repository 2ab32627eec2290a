package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"incident-pipeline/internal/models"
	"incident-pipeline/internal/store"
	"incident-pipeline/internal/ticketing"
)

func newTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Work with support tickets",
	}
	cmd.AddCommand(newTicketCreateCmd(), newTicketDeliverCmd())
	return cmd
}

// newTicketCreateCmd posts an intake to the running API server so the
// ticket goes through the same announce path as any other.
func newTicketCreateCmd() *cobra.Command {
	var in ticketing.Intake
	var severity, server string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket through the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server == "" {
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				server = "http://localhost" + cfg.HTTP.Addr
				if !strings.HasPrefix(cfg.HTTP.Addr, ":") {
					server = "http://" + cfg.HTTP.Addr
				}
			}
			in.Severity = models.Severity(severity)

			body, err := json.Marshal(in)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, strings.TrimRight(server, "/")+"/tickets", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
			if err != nil {
				return fmt.Errorf("create ticket: %w", err)
			}
			defer resp.Body.Close()

			var out map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("server answered %d: %v", resp.StatusCode, out["error"])
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Ticket title (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Ticket description")
	cmd.Flags().StringVar(&in.Category, "category", "", "Ticket category")
	cmd.Flags().StringVar(&severity, "severity", "", "critical, warning or info")
	cmd.Flags().StringVar(&in.HotelID, "hotel", "", "Hotel id (required)")
	cmd.Flags().StringVar(&in.RequesterName, "requester", "", "Requester name")
	cmd.Flags().StringVar(&server, "server", "", "API base URL (default from http.addr)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("hotel")
	return cmd
}

// newTicketDeliverCmd re-sends a stored ticket to the agent with a fresh
// event id.
func newTicketDeliverCmd() *cobra.Command {
	var ref, eventType string

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Start an outbound delivery workflow for a stored ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := dial()
			if err != nil {
				return err
			}
			defer s.Close()

			db, err := store.Open(s.cfg.Database)
			if err != nil {
				return err
			}
			tickets := store.NewTickets(db)
			var ticket models.TicketRecord
			if strings.HasPrefix(ref, "TKT-") {
				ticket, err = tickets.GetByTicketID(cmd.Context(), ref)
			} else {
				ticket, err = tickets.Get(cmd.Context(), ref)
			}
			if err != nil {
				return fmt.Errorf("load ticket %s: %w", ref, err)
			}

			env := ticketing.BuildOutboundEnvelope(uuid.NewString(), eventType, ticket, time.Now())
			if v := ticketing.ValidateOutboundEnvelope(env); !v.OK {
				return fmt.Errorf("invalid envelope: %s", v.Error)
			}
			if err := s.starter.Deliver(cmd.Context(), env); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Delivery %s scheduled for %s\n", env.EventID, ticket.TicketID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ticket", "", "Ticket id or uuid (required)")
	cmd.Flags().StringVar(&eventType, "event", ticketing.OutboundUpdated, "Outbound event type")
	_ = cmd.MarkFlagRequired("ticket")
	return cmd
}
