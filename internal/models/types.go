package models

import "time"

// IncidentStatus represents the current state of an incident
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// Severity is shared by alerts, incidents and escalation policies
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities, lower is more urgent
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Incident is an open problem tracked by the autopilot
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	Severity    Severity       `json:"severity"`
	Status      IncidentStatus `json:"status"`
	Source      string         `json:"source"`
	ServiceKey  string         `json:"service_key,omitempty"`
	RunbookSlug string         `json:"runbook_slug,omitempty"`
	OpenedAt    time.Time      `json:"opened_at"`
}

// RemediationAction is a recommendation handed to an external executor
type RemediationAction struct {
	ActionKey  string            `json:"action_key"`
	ServiceKey string            `json:"service_key"`
	Params     map[string]string `json:"params,omitempty"`
}

// EscalationPolicy configures escalation timing for one severity tier
type EscalationPolicy struct {
	Severity             Severity `json:"severity" mapstructure:"severity"`
	EscalateAfterMinutes int      `json:"escalate_after_minutes" mapstructure:"escalate_after_minutes"`
	ReminderEveryMinutes int      `json:"reminder_every_minutes" mapstructure:"reminder_every_minutes"`
	Active               bool     `json:"active" mapstructure:"active"`
}

// EscalationState is owned by the escalation workflow of one incident
type EscalationState struct {
	IncidentID     string     `json:"incident_id"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
}

// DecisionKind is the outcome of one escalation evaluation
type DecisionKind string

const (
	DecisionEscalate DecisionKind = "escalate"
	DecisionRemind   DecisionKind = "remind"
	DecisionWait     DecisionKind = "wait"
	DecisionSkip     DecisionKind = "skip"
)

// EscalationDecision carries the decision and, for escalate/remind, the
// state the caller should persist after acting on it
type EscalationDecision struct {
	Kind DecisionKind     `json:"kind"`
	Next *EscalationState `json:"next,omitempty"`
}

// RetryState describes the next attempt of a retried operation
type RetryState struct {
	AttemptCount int           `json:"attempt_count"`
	Exhausted    bool          `json:"exhausted"`
	Delay        time.Duration `json:"delay"`
	NextRetryAt  time.Time     `json:"next_retry_at"`
}

// AuditKind classifies audit entries
type AuditKind string

const (
	AuditAlert    AuditKind = "alert"
	AuditDecision AuditKind = "decision"
	AuditDelivery AuditKind = "delivery"
	AuditCallback AuditKind = "callback"
	AuditAction   AuditKind = "remediation"
)

// AuditEntry is an append-only record of something the pipeline decided
type AuditEntry struct {
	Kind      AuditKind `json:"kind"`
	Subject   string    `json:"subject"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
