package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"incident-pipeline/internal/activities"
	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/bridge"
	"incident-pipeline/internal/models"
	"incident-pipeline/internal/ticketing"
)

// DeliveryWorkflowID keys a delivery by its event id, so one envelope is
// never in flight twice.
func DeliveryWorkflowID(eventID string) string {
	return "delivery-" + eventID
}

// DeliveryWorkflow posts an outbound envelope to the external agent. Each
// activity makes exactly one attempt; the wait between attempts comes from
// the bridge backoff so the schedule is the same everywhere it is used.
func DeliveryWorkflow(ctx workflow.Context, input models.DeliveryInput) (*models.DeliveryResult, error) {
	logger := workflow.GetLogger(ctx)
	var a *activities.Activities
	env := input.Envelope

	if v := ticketing.ValidateOutboundEnvelope(env); !v.OK {
		return nil, temporal.NewNonRetryableApplicationError(v.Error, apperr.TypeInvalidArgument, nil)
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	result := &models.DeliveryResult{EventID: env.EventID}
	for {
		var status int
		err := workflow.ExecuteActivity(ctx, a.DeliverEnvelope, env).Get(ctx, &status)
		result.Attempts++
		if err == nil {
			result.Status = status
			result.Outcome = models.DeliveryDelivered
			logger.Info("Envelope delivered", "eventID", env.EventID, "attempts", result.Attempts)
			return result, nil
		}

		if apperr.HasApplicationType(err, apperr.TypeUpstreamRejected) || apperr.HasApplicationType(err, apperr.TypeInvalidArgument) {
			result.Outcome = models.DeliveryRejected
			logger.Error("Envelope rejected", "eventID", env.EventID, "error", err)
			recordDeliveryFailure(ctx, a, env, result, err)
			return result, temporal.NewNonRetryableApplicationError("delivery rejected: "+err.Error(), apperr.TypeUpstreamRejected, nil)
		}

		retry := bridge.BuildRetryUpdate(bridge.RetryInput{
			CurrentAttemptCount: result.Attempts - 1,
			MaxAttempts:         maxAttempts,
			Now:                 workflow.Now(ctx),
			RetryConfig:         bridge.RetryConfig{BaseDelay: input.BaseDelay, MaxDelay: input.MaxDelay},
		})
		if retry.Exhausted {
			result.Outcome = models.DeliveryExhausted
			logger.Error("Envelope delivery exhausted", "eventID", env.EventID, "attempts", result.Attempts, "error", err)
			recordDeliveryFailure(ctx, a, env, result, err)
			return result, temporal.NewNonRetryableApplicationError(apperr.ErrDeliveryExhausted.Error(), apperr.TypeDeliveryExhausted, nil)
		}

		logger.Warn("Envelope delivery failed, retrying",
			"eventID", env.EventID,
			"attempt", retry.AttemptCount,
			"delay", retry.Delay,
			"error", err,
		)
		if err := workflow.Sleep(ctx, retry.Delay); err != nil {
			return result, err
		}
	}
}

func recordDeliveryFailure(ctx workflow.Context, a *activities.Activities, env models.OutboundTicketEnvelope, result *models.DeliveryResult, cause error) {
	entry := models.AuditEntry{
		Kind:    models.AuditDelivery,
		Subject: env.Ticket.TicketID,
		Payload: map[string]any{
			"event_id":   env.EventID,
			"event_type": env.EventType,
			"outcome":    result.Outcome,
			"attempts":   result.Attempts,
			"error":      cause.Error(),
		},
		Timestamp: workflow.Now(ctx),
	}
	if err := workflow.ExecuteActivity(ctx, a.RecordAudit, entry).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to record delivery failure", "error", err)
	}
}
