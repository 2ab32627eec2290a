package activities

import (
	"context"

	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/models"
)

// DecisionRecord is one escalation decision the workflow acted on.
type DecisionRecord struct {
	Incident models.Incident           `json:"incident"`
	Decision models.EscalationDecision `json:"decision"`
}

// RecordAudit appends entry to the audit sink. It never fails.
func (a *Activities) RecordAudit(ctx context.Context, entry models.AuditEntry) error {
	if a.Audit != nil {
		a.Audit.Record(ctx, entry)
	}
	return nil
}

// RecordDecision audits an escalation decision and counts it.
func (a *Activities) RecordDecision(ctx context.Context, rec DecisionRecord) error {
	a.Metrics.DecisionApplied(string(rec.Decision.Kind))
	a.logger().WithFields(logrus.Fields{
		"incident_id": rec.Incident.ID,
		"decision":    rec.Decision.Kind,
	}).Info("escalation decision")
	ts := rec.Incident.OpenedAt
	if rec.Decision.Next != nil {
		switch {
		case rec.Decision.Next.LastReminderAt != nil:
			ts = *rec.Decision.Next.LastReminderAt
		case rec.Decision.Next.EscalatedAt != nil:
			ts = *rec.Decision.Next.EscalatedAt
		}
	}
	return a.RecordAudit(ctx, models.AuditEntry{
		Kind:      models.AuditDecision,
		Subject:   rec.Incident.ID,
		Payload:   rec.Decision,
		Timestamp: ts,
	})
}

// RecordIncident stores a newly opened incident.
func (a *Activities) RecordIncident(ctx context.Context, incident models.Incident) error {
	if a.Incidents == nil {
		return nil
	}
	return a.Incidents.Upsert(ctx, incident)
}

// SetIncidentStatus stores an acknowledgement or resolution.
func (a *Activities) SetIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	if a.Incidents == nil {
		return nil
	}
	return a.Incidents.SetStatus(ctx, id, status)
}

// SaveEscalationState persists the state the workflow moved to.
func (a *Activities) SaveEscalationState(ctx context.Context, st models.EscalationState) error {
	if a.Incidents == nil {
		return nil
	}
	return a.Incidents.SaveEscalation(ctx, st)
}
