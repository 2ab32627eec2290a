package models

import "time"

// Signal payloads

// AckSignal is the payload for acknowledging an incident
type AckSignal struct {
	Responder string `json:"responder"`
}

// ResolveSignal is the payload for resolving an incident
type ResolveSignal struct {
	Responder string `json:"responder"`
}

// EscalationInput starts the escalation workflow of one incident
type EscalationInput struct {
	Incident           Incident           `json:"incident"`
	Policies           []EscalationPolicy `json:"policies"`
	EvaluationInterval time.Duration      `json:"evaluation_interval"`
	// Escalation is carried over when the workflow continues as new
	Escalation *EscalationState `json:"escalation,omitempty"`
	// Continued marks a run started by continue-as-new; the incident and its
	// remediation were already recorded by an earlier run
	Continued bool `json:"continued,omitempty"`
}

// EscalationSnapshot is returned by the escalation workflow's state query
type EscalationSnapshot struct {
	Incident   Incident             `json:"incident"`
	Escalation *EscalationState     `json:"escalation,omitempty"`
	Decisions  []EscalationDecision `json:"decisions"`
	AckedBy    string               `json:"acked_by,omitempty"`
	ResolvedBy string               `json:"resolved_by,omitempty"`
}

// NotifyInput is the input for the Notify activity
type NotifyInput struct {
	IncidentID string       `json:"incident_id"`
	Title      string       `json:"title"`
	Summary    string       `json:"summary"`
	Severity   Severity     `json:"severity"`
	Decision   DecisionKind `json:"decision"`
}

// DeliveryInput starts the outbound delivery workflow
type DeliveryInput struct {
	Envelope    OutboundTicketEnvelope `json:"envelope"`
	MaxAttempts int                    `json:"max_attempts"`
	BaseDelay   time.Duration          `json:"base_delay"`
	MaxDelay    time.Duration          `json:"max_delay"`
}

// DeliveryResult reports how an outbound delivery ended
type DeliveryResult struct {
	EventID  string `json:"event_id"`
	Attempts int    `json:"attempts"`
	Outcome  string `json:"outcome"`
	Status   int    `json:"status"`
}

// Outcome values reported in DeliveryResult
const (
	DeliveryDelivered = "delivered"
	DeliveryRejected  = "rejected"
	DeliveryExhausted = "exhausted"
)
