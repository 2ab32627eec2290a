package ticketing

import (
	"strings"
	"time"

	"incident-pipeline/internal/models"
)

// Outbound event types accepted by the agent.
const (
	OutboundCreated       = "ticket.created"
	OutboundUpdated       = "ticket.updated"
	OutboundStatusChanged = "ticket.status_changed"
)

var outboundEvents = map[string]bool{
	OutboundCreated:       true,
	OutboundUpdated:       true,
	OutboundStatusChanged: true,
}

// Project copies the fields of ticket that may leave the building. Requester
// identity, assignee and internal metadata stay local.
func Project(ticket models.TicketRecord) models.TicketProjection {
	attachments := make([]models.Attachment, len(ticket.Attachments))
	copy(attachments, ticket.Attachments)
	return models.TicketProjection{
		TicketUUID:  ticket.ID,
		TicketID:    ticket.TicketID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Category:    ticket.Category,
		Severity:    ticket.Severity,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		Source:      ticket.Source,
		HotelID:     ticket.HotelID,
		Attachments: attachments,
		CreatedAt:   ticket.CreatedAt,
	}
}

// BuildOutboundEnvelope never fails; unsupported event types are caught by
// ValidateOutboundEnvelope before transmission.
func BuildOutboundEnvelope(eventID, eventType string, ticket models.TicketRecord, now time.Time) models.OutboundTicketEnvelope {
	return models.OutboundTicketEnvelope{
		EventID:   strings.TrimSpace(eventID),
		EventType: eventType,
		Ticket:    Project(ticket),
		Timestamp: now.UTC(),
	}
}

// ValidateOutboundEnvelope checks env before it is sent.
func ValidateOutboundEnvelope(env models.OutboundTicketEnvelope) models.ValidationResult {
	switch {
	case strings.TrimSpace(env.EventID) == "":
		return invalid("event_id is required")
	case !outboundEvents[env.EventType]:
		return invalid("unsupported outbound event_type")
	case env.Ticket.TicketUUID == "" && env.Ticket.TicketID == "":
		return invalid("ticket_id or ticket_uuid is required")
	}
	return models.ValidationResult{OK: true}
}

func invalid(msg string) models.ValidationResult {
	return models.ValidationResult{OK: false, Error: msg}
}
