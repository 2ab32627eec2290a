package models

import "time"

// TicketStatus represents where a support ticket is in its lifecycle
type TicketStatus string

const (
	TicketReceived   TicketStatus = "received"
	TicketTriaged    TicketStatus = "triaged"
	TicketInProgress TicketStatus = "in_progress"
	TicketFixed      TicketStatus = "fixed"
	TicketNeedsHuman TicketStatus = "needs_human"
	TicketClosed     TicketStatus = "closed"
)

// Open reports whether the ticket still needs work
func (s TicketStatus) Open() bool {
	return s != TicketClosed
}

// Attachment is a file referenced by a ticket
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// TicketRecord is the locally owned copy of a support ticket
type TicketRecord struct {
	ID              string         `json:"id"`
	TicketID        string         `json:"ticket_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Severity        Severity       `json:"severity"`
	Priority        string         `json:"priority"`
	Status          TicketStatus   `json:"status"`
	Source          string         `json:"source"`
	RequesterID     string         `json:"requester_id"`
	RequesterName   string         `json:"requester_name"`
	AssigneeUserID  *string        `json:"assignee_user_id,omitempty"`
	HotelID         string         `json:"hotel_id"`
	Attachments     []Attachment   `json:"attachments"`
	Metadata        map[string]any `json:"metadata"`
	FirstResponseAt *time.Time     `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TicketProjection is the subset of a ticket shared with the external agent
type TicketProjection struct {
	TicketUUID  string       `json:"ticket_uuid"`
	TicketID    string       `json:"ticket_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Severity    Severity     `json:"severity"`
	Priority    string       `json:"priority"`
	Status      TicketStatus `json:"status"`
	Source      string       `json:"source"`
	HotelID     string       `json:"hotel_id"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

// OutboundTicketEnvelope is one event sent to the external agent
type OutboundTicketEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Ticket    TicketProjection `json:"ticket"`
	Timestamp time.Time        `json:"timestamp"`
}

// CallbackPayload is what the external agent posts back to us
type CallbackPayload struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	TicketID   string         `json:"ticket_id,omitempty"`
	TicketUUID string         `json:"ticket_uuid,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ValidationResult is returned at webhook boundaries instead of an error
type ValidationResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
