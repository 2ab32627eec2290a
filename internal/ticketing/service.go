package ticketing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/bridge"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
)

// TicketStore persists tickets. SaveCallback stores a ticket together with
// the callback event id that changed it, atomically, and reports
// applied=false when that event id was already stored.
type TicketStore interface {
	Create(ctx context.Context, t models.TicketRecord) error
	Save(ctx context.Context, t models.TicketRecord) error
	SaveCallback(ctx context.Context, t models.TicketRecord, eventID string) (applied bool, err error)
	Get(ctx context.Context, id string) (models.TicketRecord, error)
	Find(ctx context.Context, uuid, ticketID string) (models.TicketRecord, error)
}

// Auditor is the fire-and-forget audit sink.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// Deliverer hands a validated envelope to the retrying delivery path.
type Deliverer interface {
	Deliver(ctx context.Context, env models.OutboundTicketEnvelope) error
}

// Intake is what a caller supplies when opening a ticket.
type Intake struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Category       string              `json:"category"`
	Severity       models.Severity     `json:"severity"`
	Priority       string              `json:"priority"`
	Source         string              `json:"source"`
	RequesterID    string              `json:"requester_id"`
	RequesterName  string              `json:"requester_name"`
	AssigneeUserID *string             `json:"assignee_user_id,omitempty"`
	HotelID        string              `json:"hotel_id"`
	Attachments    []models.Attachment `json:"attachments"`
	Metadata       map[string]any      `json:"metadata"`
}

// CallbackResult is what the webhook handler reports back to the agent.
type CallbackResult struct {
	OK        bool                 `json:"ok"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Error     string               `json:"error,omitempty"`
	Ticket    *models.TicketRecord `json:"ticket,omitempty"`
}

// Service owns the ticket lifecycle. Callbacks and local status changes are
// applied one at a time so an update is either stored whole or not at all.
type Service struct {
	mu sync.Mutex

	tickets   TicketStore
	registry  bridge.Registry
	audit     Auditor
	deliverer Deliverer
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics records callback outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires a Service. deliverer may be nil, in which case outbound
// envelopes are built and audited but not sent.
func NewService(tickets TicketStore, registry bridge.Registry, audit Auditor, deliverer Deliverer, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		tickets:   tickets,
		registry:  registry,
		audit:     audit,
		deliverer: deliverer,
		log:       log.WithField("component", "ticketing"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTicket stores a new ticket in state received and announces it to the agent.
func (s *Service) CreateTicket(ctx context.Context, in Intake) (models.TicketRecord, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.TicketRecord{}, apperr.InvalidArgument("title is required")
	}
	if strings.TrimSpace(in.HotelID) == "" {
		return models.TicketRecord{}, apperr.InvalidArgument("hotel_id is required")
	}

	now := s.now()
	id := uuid.New()
	ticket := models.TicketRecord{
		ID:             id.String(),
		TicketID:       "TKT-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10]),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Category:       orDefault(in.Category, "general"),
		Severity:       models.Severity(orDefault(string(in.Severity), string(models.SeverityInfo))),
		Priority:       orDefault(in.Priority, "normal"),
		Status:         models.TicketReceived,
		Source:         orDefault(in.Source, "staff"),
		RequesterID:    in.RequesterID,
		RequesterName:  in.RequesterName,
		AssigneeUserID: in.AssigneeUserID,
		HotelID:        in.HotelID,
		Attachments:    append([]models.Attachment{}, in.Attachments...),
		Metadata:       map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for k, v := range in.Metadata {
		ticket.Metadata[k] = v
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return models.TicketRecord{}, err
	}
	s.log.WithFields(logrus.Fields{"ticket_id": ticket.TicketID, "hotel_id": ticket.HotelID}).Info("ticket received")

	s.announce(ctx, OutboundCreated, ticket)
	return ticket, nil
}

// ChangeStatus applies an explicit local status change allowed by the
// transition table and tells the agent about it.
func (s *Service) ChangeStatus(ctx context.Context, id string, to models.TicketStatus) (models.TicketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return models.TicketRecord{}, err
	}
	if err := ValidateTransition(ticket.Status, to); err != nil {
		return models.TicketRecord{}, err
	}

	now := s.now()
	ticket.Status = to
	ticket.UpdatedAt = now
	if to == models.TicketClosed && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return models.TicketRecord{}, err
	}

	s.announce(ctx, OutboundStatusChanged, ticket)
	return ticket, nil
}

// HandleCallback validates, deduplicates and applies one agent callback.
// Validation failures come back as a result with OK=false and an
// ErrInvalidArgument error; a duplicate is a successful no-op. The event id
// is registered only after the ticket is stored, so a failed save leaves the
// callback free to be redelivered.
func (s *Service) HandleCallback(ctx context.Context, payload models.CallbackPayload) (CallbackResult, error) {
	if v := ValidateCallbackPayload(payload); !v.OK {
		s.metrics.CallbackHandled("invalid")
		return CallbackResult{OK: false, Error: v.Error}, apperr.InvalidArgument(v.Error)
	}
	eventID, err := bridge.NormalizeEventID(payload.EventID)
	if err != nil {
		return CallbackResult{OK: false, Error: err.Error()}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.tickets.Find(ctx, strings.TrimSpace(payload.TicketUUID), strings.TrimSpace(payload.TicketID))
	if err == nil && !MatchesTicket(ticket, payload) {
		// Case-insensitive collations can return a near match.
		err = apperr.New(apperr.ErrNotFound, "ticket not found")
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.metrics.CallbackHandled("unknown_ticket")
			return CallbackResult{OK: false, Error: "ticket not found"}, err
		}
		return CallbackResult{OK: false, Error: "internal error"}, err
	}

	updated, err := ApplyCallback(ticket, payload, s.now())
	if err != nil {
		s.metrics.CallbackHandled("invalid")
		return CallbackResult{OK: false, Error: err.Error()}, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"event_id":   eventID,
		"event_type": payload.EventType,
		"ticket_id":  ticket.TicketID,
	})
	seen, err := s.registry.Contains(ctx, eventID)
	if err != nil {
		return CallbackResult{OK: false, Error: "internal error"}, fmt.Errorf("check callback %s: %w", eventID, err)
	}
	if seen {
		return s.duplicate(entry, ticket), nil
	}

	applied, err := s.tickets.SaveCallback(ctx, updated, eventID)
	if err != nil {
		entry.WithError(err).Error("callback not applied")
		return CallbackResult{OK: false, Error: "internal error"}, fmt.Errorf("apply callback %s: %w", eventID, err)
	}
	if _, err := s.registry.Register(ctx, eventID); err != nil {
		entry.WithError(err).Warn("applied callback not registered")
	}
	if !applied {
		return s.duplicate(entry, ticket), nil
	}

	entry.WithField("status", updated.Status).Info("callback applied")
	s.metrics.CallbackHandled("applied")
	s.audit.Record(ctx, models.AuditEntry{
		Kind:      models.AuditCallback,
		Subject:   ticket.TicketID,
		Payload:   map[string]any{"event_id": eventID, "event_type": payload.EventType, "status": updated.Status},
		Timestamp: updated.UpdatedAt,
	})
	return CallbackResult{OK: true, Ticket: &updated}, nil
}

func (s *Service) duplicate(entry logrus.FieldLogger, ticket models.TicketRecord) CallbackResult {
	entry.Info("duplicate callback ignored")
	s.metrics.CallbackHandled("duplicate")
	return CallbackResult{OK: true, Duplicate: true, Ticket: &ticket}
}

// announce builds, validates and hands off an outbound envelope. Failures
// are audited and logged; they never undo the local change.
func (s *Service) announce(ctx context.Context, eventType string, ticket models.TicketRecord) {
	env := BuildOutboundEnvelope(uuid.NewString(), eventType, ticket, s.now())
	entry := s.log.WithFields(logrus.Fields{"event_id": env.EventID, "event_type": eventType, "ticket_id": ticket.TicketID})

	if v := ValidateOutboundEnvelope(env); !v.OK {
		entry.WithField("error", v.Error).Error("outbound envelope rejected")
		return
	}
	if s.deliverer == nil {
		entry.Debug("no deliverer configured, envelope not sent")
		return
	}
	if err := s.deliverer.Deliver(ctx, env); err != nil {
		entry.WithError(err).Error("outbound delivery could not be scheduled")
		s.audit.Record(ctx, models.AuditEntry{
			Kind:      models.AuditDelivery,
			Subject:   ticket.TicketID,
			Payload:   map[string]any{"event_id": env.EventID, "error": err.Error()},
			Timestamp: env.Timestamp,
		})
		return
	}
	entry.Info("outbound delivery scheduled")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
