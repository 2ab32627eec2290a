package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"incident-pipeline/internal/activities"
	"incident-pipeline/internal/autopilot"
	"incident-pipeline/internal/models"
)

const (
	// Signal names
	SignalAck     = "ack"
	SignalResolve = "resolve"

	// Query names
	QueryState = "state"

	// DefaultEvaluationInterval is used when the input carries none
	DefaultEvaluationInterval = time.Minute

	// MaxEvaluationsPerRun bounds history before the workflow continues as new
	MaxEvaluationsPerRun = 1000
)

// EscalationWorkflowID is the workflow id of an incident's escalation.
// One workflow per incident keeps evaluation of that incident serialized.
func EscalationWorkflowID(incidentID string) string {
	return "escalation-" + incidentID
}

// EscalationWorkflow drives the escalation state machine of one incident
// until it is resolved.
func EscalationWorkflow(ctx workflow.Context, input models.EscalationInput) (*models.EscalationSnapshot, error) {
	logger := workflow.GetLogger(ctx)
	var a *activities.Activities

	incident := input.Incident
	if incident.Status == "" {
		incident.Status = models.IncidentOpen
	}
	if incident.OpenedAt.IsZero() {
		incident.OpenedAt = workflow.Now(ctx)
	}
	interval := input.EvaluationInterval
	if interval <= 0 {
		interval = DefaultEvaluationInterval
	}

	state := &models.EscalationSnapshot{
		Incident:   incident,
		Escalation: input.Escalation,
		Decisions:  []models.EscalationDecision{},
	}

	// Activity options with retry policy
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	err := workflow.SetQueryHandler(ctx, QueryState, func() (*models.EscalationSnapshot, error) {
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	ackChan := workflow.GetSignalChannel(ctx, SignalAck)
	resolveChan := workflow.GetSignalChannel(ctx, SignalResolve)

	if !input.Continued {
		if err := workflow.ExecuteActivity(ctx, a.RecordIncident, state.Incident).Get(ctx, nil); err != nil {
			logger.Warn("Failed to record incident", "error", err)
		}
		if action := autopilot.MapIncidentToAction(state.Incident); action != nil {
			err := workflow.ExecuteActivity(ctx, a.DispatchRemediation, state.Incident.ID, *action).Get(ctx, nil)
			if err != nil {
				logger.Warn("Failed to dispatch remediation", "action", action.ActionKey, "error", err)
			}
		}
	}

	policy, hasPolicy := autopilot.PolicyFor(input.Policies, state.Incident.Severity)
	evaluating := true

	evaluate := func() {
		decision := models.EscalationDecision{Kind: models.DecisionSkip}
		if hasPolicy {
			decision = autopilot.ComputeEscalationDecision(autopilot.EscalationInput{
				Incident: state.Incident,
				Policy:   policy,
				Existing: state.Escalation,
				Now:      workflow.Now(ctx),
			})
		}
		if decision.Kind == models.DecisionWait {
			return
		}
		state.Decisions = append(state.Decisions, decision)

		if decision.Kind == models.DecisionSkip {
			// Nothing about the policy changes while the workflow runs.
			evaluating = false
		} else {
			err := workflow.ExecuteActivity(ctx, a.SendNotification, models.NotifyInput{
				IncidentID: state.Incident.ID,
				Title:      state.Incident.Title,
				Summary:    state.Incident.Summary,
				Severity:   state.Incident.Severity,
				Decision:   decision.Kind,
			}).Get(ctx, nil)
			if err != nil {
				logger.Warn("Failed to send notification", "decision", decision.Kind, "error", err)
			}

			state.Escalation = decision.Next
			if err := workflow.ExecuteActivity(ctx, a.SaveEscalationState, *decision.Next).Get(ctx, nil); err != nil {
				logger.Warn("Failed to save escalation state", "error", err)
			}
		}

		err := workflow.ExecuteActivity(ctx, a.RecordDecision, activities.DecisionRecord{
			Incident: state.Incident,
			Decision: decision,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to record decision", "error", err)
		}
		logger.Info("Escalation decision", "incidentID", state.Incident.ID, "decision", decision.Kind)
	}

	setStatus := func(status models.IncidentStatus) {
		state.Incident.Status = status
		err := workflow.ExecuteActivity(ctx, a.SetIncidentStatus, state.Incident.ID, status).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to store incident status", "status", status, "error", err)
		}
	}

	if state.Incident.Status == models.IncidentOpen {
		evaluate()
	}

	var timerFuture workflow.Future
	var cancelTimer workflow.CancelFunc
	evaluations := 0

	// Main event loop - continues until incident is resolved
	for state.Incident.Status != models.IncidentResolved {
		open := state.Incident.Status == models.IncidentOpen && evaluating

		if open && evaluations >= MaxEvaluationsPerRun && ackChan.Len() == 0 && resolveChan.Len() == 0 {
			logger.Info("Continuing escalation as new", "incidentID", state.Incident.ID)
			return nil, workflow.NewContinueAsNewError(ctx, EscalationWorkflow, models.EscalationInput{
				Incident:           state.Incident,
				Policies:           input.Policies,
				EvaluationInterval: interval,
				Escalation:         state.Escalation,
				Continued:          true,
			})
		}

		if open && timerFuture == nil {
			var timerCtx workflow.Context
			timerCtx, cancelTimer = workflow.WithCancel(ctx)
			timerFuture = workflow.NewTimer(timerCtx, interval)
		}

		selector := workflow.NewSelector(ctx)

		selector.AddReceive(ackChan, func(c workflow.ReceiveChannel, more bool) {
			var signal models.AckSignal
			c.Receive(ctx, &signal)

			if state.Incident.Status != models.IncidentOpen {
				return
			}
			logger.Info("Incident acknowledged", "responder", signal.Responder)
			state.AckedBy = signal.Responder
			if cancelTimer != nil {
				cancelTimer()
			}
			timerFuture = nil
			setStatus(models.IncidentAcknowledged)
		})

		selector.AddReceive(resolveChan, func(c workflow.ReceiveChannel, more bool) {
			var signal models.ResolveSignal
			c.Receive(ctx, &signal)

			logger.Info("Incident resolved", "responder", signal.Responder)
			state.ResolvedBy = signal.Responder
			if cancelTimer != nil {
				cancelTimer()
			}
			timerFuture = nil
			setStatus(models.IncidentResolved)
		})

		if open && timerFuture != nil {
			selector.AddFuture(timerFuture, func(f workflow.Future) {
				timerFuture = nil
				if err := f.Get(ctx, nil); err != nil {
					return
				}
				evaluations++
				evaluate()
			})
		}

		selector.Select(ctx)
	}

	logger.Info("Escalation workflow completed",
		"incidentID", state.Incident.ID,
		"decisions", len(state.Decisions),
		"resolvedBy", state.ResolvedBy,
	)

	return state, nil
}
