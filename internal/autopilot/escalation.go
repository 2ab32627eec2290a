package autopilot

import (
	"time"

	"incident-pipeline/internal/models"
)

// EscalationInput is everything one escalation evaluation looks at.
type EscalationInput struct {
	Incident models.Incident
	Policy   models.EscalationPolicy
	Existing *models.EscalationState
	Now      time.Time
}

// ComputeEscalationDecision applies the escalation policy to an incident.
// It never mutates its input; for escalate and remind it returns the state
// the caller should store once it has acted on the decision.
//
// Rules, first match wins:
//  1. inactive policy or severity mismatch: skip
//  2. not escalated yet and escalateAfter elapsed since opening: escalate
//  3. escalated and reminderEvery elapsed since the last reminder
//     (or the escalation): remind
//  4. otherwise: wait
func ComputeEscalationDecision(in EscalationInput) models.EscalationDecision {
	if !in.Policy.Active || in.Policy.Severity != in.Incident.Severity {
		return models.EscalationDecision{Kind: models.DecisionSkip}
	}

	if in.Existing == nil {
		escalateAfter := minutes(in.Policy.EscalateAfterMinutes)
		if escalateAfter <= 0 || in.Now.Sub(in.Incident.OpenedAt) >= escalateAfter {
			now := in.Now
			return models.EscalationDecision{
				Kind: models.DecisionEscalate,
				Next: &models.EscalationState{IncidentID: in.Incident.ID, EscalatedAt: &now},
			}
		}
		return models.EscalationDecision{Kind: models.DecisionWait}
	}

	if in.Existing.EscalatedAt != nil && in.Policy.ReminderEveryMinutes > 0 {
		since := *in.Existing.EscalatedAt
		if in.Existing.LastReminderAt != nil {
			since = *in.Existing.LastReminderAt
		}
		if in.Now.Sub(since) >= minutes(in.Policy.ReminderEveryMinutes) {
			now := in.Now
			escalatedAt := *in.Existing.EscalatedAt
			return models.EscalationDecision{
				Kind: models.DecisionRemind,
				Next: &models.EscalationState{
					IncidentID:     in.Existing.IncidentID,
					EscalatedAt:    &escalatedAt,
					LastReminderAt: &now,
				},
			}
		}
	}
	return models.EscalationDecision{Kind: models.DecisionWait}
}

// PolicyFor returns the policy for severity, if one is configured.
func PolicyFor(policies []models.EscalationPolicy, severity models.Severity) (models.EscalationPolicy, bool) {
	for _, p := range policies {
		if p.Severity == severity {
			return p, true
		}
	}
	return models.EscalationPolicy{}, false
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
