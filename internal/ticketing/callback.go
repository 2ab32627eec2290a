package ticketing

import (
	"strings"
	"time"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// MetaLastEventID records the last callback applied to a ticket.
const MetaLastEventID = "openclaw_last_event_id"

// ValidateCallbackPayload never panics or errors; the handler turns the
// result straight into a response.
func ValidateCallbackPayload(p models.CallbackPayload) models.ValidationResult {
	switch {
	case strings.TrimSpace(p.EventID) == "":
		return invalid("event_id is required")
	case strings.TrimSpace(p.EventType) == "":
		return invalid("event_type is required")
	case !IsCallbackEvent(p.EventType):
		return invalid("unsupported event_type")
	case strings.TrimSpace(p.TicketID) == "" && strings.TrimSpace(p.TicketUUID) == "":
		return invalid("ticket_id or ticket_uuid is required")
	}
	return models.ValidationResult{OK: true}
}

// ApplyCallback returns a copy of ticket with the callback applied. The
// input ticket is left untouched, as are ID, TicketID and CreatedAt.
func ApplyCallback(ticket models.TicketRecord, cb models.CallbackPayload, now time.Time) (models.TicketRecord, error) {
	status, err := MapCallbackEventToStatus(cb.EventType)
	if err != nil {
		return ticket, err
	}
	eventID := strings.TrimSpace(cb.EventID)
	if eventID == "" {
		return ticket, apperr.InvalidArgument("event_id is required")
	}

	out := ticket
	out.Attachments = append([]models.Attachment(nil), ticket.Attachments...)
	out.Metadata = make(map[string]any, len(ticket.Metadata)+len(cb.Metadata)+1)
	for k, v := range ticket.Metadata {
		out.Metadata[k] = v
	}
	for k, v := range cb.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata[MetaLastEventID] = eventID

	out.Status = status
	if out.FirstResponseAt == nil {
		t := now
		out.FirstResponseAt = &t
	}
	if status == models.TicketClosed && out.ResolvedAt == nil {
		t := now
		out.ResolvedAt = &t
	}
	out.UpdatedAt = now
	return out, nil
}

// MatchesTicket reports whether cb refers to ticket.
func MatchesTicket(ticket models.TicketRecord, cb models.CallbackPayload) bool {
	if id := strings.TrimSpace(cb.TicketUUID); id != "" {
		return id == ticket.ID
	}
	return strings.TrimSpace(cb.TicketID) == ticket.TicketID
}
