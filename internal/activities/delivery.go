package activities

import (
	"context"

	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// DeliverEnvelope makes a single POST of env to the external agent. Failures
// come back as Temporal application errors typed UpstreamUnavailable
// (retry later) or UpstreamRejected (give up).
func (a *Activities) DeliverEnvelope(ctx context.Context, env models.OutboundTicketEnvelope) (int, error) {
	entry := a.logger().WithFields(logrus.Fields{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"ticket_id":  env.Ticket.TicketID,
	})
	if a.Sender == nil {
		entry.Warn("no envelope sender configured")
		return 0, apperr.ToApplicationError(apperr.InvalidArgument("no envelope sender configured"))
	}

	status, err := a.Sender.Send(ctx, env)
	if err != nil {
		a.Metrics.DeliveryAttempted("failed")
		entry.WithError(err).WithField("status", status).Warn("envelope delivery failed")
		return status, apperr.ToApplicationError(err)
	}
	a.Metrics.DeliveryAttempted("delivered")
	entry.WithField("status", status).Info("envelope delivered")
	return status, nil
}
