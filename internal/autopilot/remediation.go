// Package autopilot maps incidents to remediation actions and decides when
// an incident needs human attention.
package autopilot

import (
	"time"

	"incident-pipeline/internal/models"
)

// Runbook slugs known to the autopilot.
const (
	RunbookHeartbeatStale       = "service-heartbeat-stale"
	RunbookServiceDown          = "service-down"
	RunbookQueueBacklogCritical = "queue-backlog-critical"
	RunbookQueueBacklogWarning  = "queue-backlog-warning"
)

var remediationTable = map[string]string{
	RunbookHeartbeatStale:       "restart_stale_worker",
	RunbookServiceDown:          "restart_service",
	RunbookQueueBacklogCritical: "scale_queue_consumers",
}

// MapIncidentToAction looks the incident's runbook up in a fixed table.
// Unknown runbooks, and incidents without a service key, get no action.
func MapIncidentToAction(incident models.Incident) *models.RemediationAction {
	actionKey, ok := remediationTable[incident.RunbookSlug]
	if !ok || incident.ServiceKey == "" {
		return nil
	}
	return &models.RemediationAction{
		ActionKey:  actionKey,
		ServiceKey: incident.ServiceKey,
		Params: map[string]string{
			"incident_id": incident.ID,
			"runbook":     incident.RunbookSlug,
		},
	}
}

// RunbookForAlert names the runbook an alert kind is handled by.
func RunbookForAlert(kind models.AlertKind) string {
	switch kind {
	case models.AlertDown:
		return RunbookServiceDown
	case models.AlertStale:
		return RunbookHeartbeatStale
	case models.AlertQueueCritical:
		return RunbookQueueBacklogCritical
	case models.AlertQueueWarning:
		return RunbookQueueBacklogWarning
	}
	return ""
}

// IncidentFromAlert opens an incident for a watchdog alert. The incident
// shares the alert id so that re-evaluation does not open it twice.
func IncidentFromAlert(alert models.WatchdogAlert, openedAt time.Time) models.Incident {
	return models.Incident{
		ID:          alert.ID,
		Title:       alert.Title,
		Summary:     alert.Detail,
		Severity:    alert.Severity,
		Status:      models.IncidentOpen,
		Source:      "watchdog",
		ServiceKey:  alert.ServiceKey,
		RunbookSlug: RunbookForAlert(alert.Kind),
		OpenedAt:    openedAt,
	}
}
