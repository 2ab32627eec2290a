// Package api serves the pipeline's HTTP surface: the agent webhook,
// ticket intake, heartbeat push and the watchdog summary.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
	"incident-pipeline/internal/ticketing"
)

// TicketService is what the ticket and webhook handlers need.
type TicketService interface {
	CreateTicket(ctx context.Context, in ticketing.Intake) (models.TicketRecord, error)
	ChangeStatus(ctx context.Context, id string, to models.TicketStatus) (models.TicketRecord, error)
	HandleCallback(ctx context.Context, payload models.CallbackPayload) (ticketing.CallbackResult, error)
}

// HeartbeatSink accepts pushed heartbeats.
type HeartbeatSink interface {
	Add(hb models.HeartbeatRecord, source string) error
}

// SummarySource serves the most recent watchdog evaluation.
type SummarySource interface {
	Latest() (models.WatchdogSummary, bool)
}

// Handler holds the dependencies of every route.
type Handler struct {
	tickets    TicketService
	heartbeats HeartbeatSink
	summaries  SummarySource
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

func NewHandler(tickets TicketService, heartbeats HeartbeatSink, summaries SummarySource, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{
		tickets:    tickets,
		heartbeats: heartbeats,
		summaries:  summaries,
		metrics:    m,
		log:        log.WithField("component", "api"),
	}
}

// NewRouter registers every route on a mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/webhooks/openclaw", h.metrics.Instrument("webhook", http.HandlerFunc(h.openClawWebhook))).Methods(http.MethodPost)
	r.Handle("/tickets", h.metrics.Instrument("tickets_create", http.HandlerFunc(h.createTicket))).Methods(http.MethodPost)
	r.Handle("/tickets/{id}/status", h.metrics.Instrument("tickets_status", http.HandlerFunc(h.changeStatus))).Methods(http.MethodPost)
	r.Handle("/heartbeats", h.metrics.Instrument("heartbeats", http.HandlerFunc(h.pushHeartbeat))).Methods(http.MethodPost)
	r.Handle("/watchdog/summary", h.metrics.Instrument("watchdog_summary", http.HandlerFunc(h.watchdogSummary))).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Wrap adds access logging and panic recovery around the router.
func Wrap(router http.Handler, log *logrus.Logger) http.Handler {
	logged := handlers.CombinedLoggingHandler(log.WriterLevel(logrus.InfoLevel), router)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(log),
		handlers.PrintRecoveryStack(false),
	)(logged)
}
