package activities

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
)

// Auditor is the fire-and-forget audit sink.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// IncidentStore persists incidents and their escalation state.
type IncidentStore interface {
	Upsert(ctx context.Context, inc models.Incident) error
	SetStatus(ctx context.Context, id string, status models.IncidentStatus) error
	SaveEscalation(ctx context.Context, st models.EscalationState) error
}

// EnvelopeSender makes one delivery attempt to the external agent.
type EnvelopeSender interface {
	Send(ctx context.Context, env models.OutboundTicketEnvelope) (int, error)
}

// ActionPublisher hands remediation actions to the external executor.
type ActionPublisher interface {
	Publish(ctx context.Context, action models.RemediationAction) error
}

// Activities groups every activity the worker registers. Nil collaborators
// turn the matching activity into a logged no-op.
type Activities struct {
	Log        logrus.FieldLogger
	Audit      Auditor
	Incidents  IncidentStore
	Sender     EnvelopeSender
	Publisher  ActionPublisher
	Metrics    *metrics.Metrics
	NotifyURL  string
	HTTPClient *http.Client
}

func (a *Activities) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}
