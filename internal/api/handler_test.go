package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"incident-pipeline/internal/bridge"
	"incident-pipeline/internal/feed"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
	"incident-pipeline/internal/store"
	"incident-pipeline/internal/ticketing"
)

type nopAudit struct{}

func (nopAudit) Record(context.Context, models.AuditEntry) {}

type fixedSummary struct {
	summary *models.WatchdogSummary
}

func (f *fixedSummary) Latest() (models.WatchdogSummary, bool) {
	if f.summary == nil {
		return models.WatchdogSummary{}, false
	}
	return *f.summary, true
}

type APISuite struct {
	suite.Suite
	tickets   *store.Tickets
	feed      *feed.Store
	summaries *fixedSummary
	router    http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	db, err := store.OpenInMemory()
	s.Require().NoError(err)
	log, _ := test.NewNullLogger()
	m := metrics.New()

	s.tickets = store.NewTickets(db)
	s.feed = feed.NewStore(0, m)
	s.summaries = &fixedSummary{}
	svc := ticketing.NewService(s.tickets, bridge.NewMemoryRegistry(), nopAudit{}, nil, log, ticketing.WithMetrics(m))
	s.router = NewRouter(NewHandler(svc, s.feed, s.summaries, m, log))
}

func (s *APISuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			s.Require().NoError(json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) createTicket() models.TicketRecord {
	rec := s.do(http.MethodPost, "/tickets", ticketing.Intake{Title: "Pool pump noisy", HotelID: "hotel-porto"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var ticket models.TicketRecord
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

func (s *APISuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *APISuite) TestCreateTicketValidation() {
	rec := s.do(http.MethodPost, "/tickets", ticketing.Intake{HotelID: "hotel-porto"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "title is required")

	rec = s.do(http.MethodPost, "/tickets", "{not json")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestWebhookAppliesCallback() {
	ticket := s.createTicket()

	rec := s.do(http.MethodPost, "/webhooks/openclaw", models.CallbackPayload{
		EventID:   "cb-1",
		EventType: ticketing.EventTriaged,
		TicketID:  ticket.TicketID,
		Metadata:  map[string]any{"triage_note": "pump bearing"},
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var result ticketing.CallbackResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.True(result.OK)
	s.False(result.Duplicate)
	s.Require().NotNil(result.Ticket)
	s.Equal(models.TicketTriaged, result.Ticket.Status)

	stored, err := s.tickets.Get(context.Background(), ticket.ID)
	s.Require().NoError(err)
	s.Equal(models.TicketTriaged, stored.Status)
	s.Equal("pump bearing", stored.Metadata["triage_note"])
}

func (s *APISuite) TestWebhookDuplicateLeavesTicketUnchanged() {
	ticket := s.createTicket()
	first := models.CallbackPayload{EventID: "cb-1", EventType: ticketing.EventTriaged, TicketUUID: ticket.ID}
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/webhooks/openclaw", first).Code)

	before, err := s.tickets.Get(context.Background(), ticket.ID)
	s.Require().NoError(err)

	replay := first
	replay.EventType = ticketing.EventResolved
	rec := s.do(http.MethodPost, "/webhooks/openclaw", replay)
	s.Require().Equal(http.StatusOK, rec.Code)

	var result ticketing.CallbackResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.True(result.OK)
	s.True(result.Duplicate)

	after, err := s.tickets.Get(context.Background(), ticket.ID)
	s.Require().NoError(err)
	s.Equal(before.Status, after.Status)
	s.Equal(models.TicketTriaged, after.Status)
}

func (s *APISuite) TestWebhookValidationAndUnknownTicket() {
	rec := s.do(http.MethodPost, "/webhooks/openclaw", models.CallbackPayload{EventType: ticketing.EventTriaged, TicketID: "TKT-1"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"ok":false,"error":"event_id is required"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/webhooks/openclaw", models.CallbackPayload{EventID: "cb-9", EventType: "ticket.exploded", TicketID: "TKT-1"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/webhooks/openclaw", models.CallbackPayload{EventID: "cb-9", EventType: ticketing.EventTriaged, TicketID: "TKT-MISSING"})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestChangeStatus() {
	ticket := s.createTicket()

	rec := s.do(http.MethodPost, "/tickets/"+ticket.ID+"/status", map[string]string{"status": string(models.TicketTriaged)})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/tickets/"+ticket.ID+"/status", map[string]string{"status": string(models.TicketReceived)})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "cannot move ticket")

	rec = s.do(http.MethodPost, "/tickets/nope/status", map[string]string{"status": string(models.TicketClosed)})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestPushHeartbeat() {
	rec := s.do(http.MethodPost, "/heartbeats", models.HeartbeatRecord{ServiceKey: "spa", Status: models.HeartbeatOK, QueueDepth: 3})
	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal(1, s.feed.Services())

	rec = s.do(http.MethodPost, "/heartbeats", models.HeartbeatRecord{ServiceKey: "spa", Status: "exploded"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestWatchdogSummary() {
	rec := s.do(http.MethodGet, "/watchdog/summary", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	s.summaries.summary = &models.WatchdogSummary{Uptime24hPct: 50, DownServices: 1, EvaluatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rec = s.do(http.MethodGet, "/watchdog/summary", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var got models.WatchdogSummary
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(1, got.DownServices)
}

func (s *APISuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/healthz", nil)
	s.do(http.MethodPost, "/heartbeats", models.HeartbeatRecord{ServiceKey: "spa", Status: models.HeartbeatOK})

	rec := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), "heartbeats"))
}

func (s *APISuite) TestMethodNotAllowed() {
	rec := s.do(http.MethodGet, "/tickets", nil)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}
