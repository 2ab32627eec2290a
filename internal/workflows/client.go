package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"incident-pipeline/internal/models"
)

// WorkflowClient is the part of client.Client the starter uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// DeliverySettings are copied into every delivery workflow input.
type DeliverySettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Starter starts and talks to the pipeline's workflows. It is the incident
// opener of the watchdog and the deliverer of the ticket service.
type Starter struct {
	client             WorkflowClient
	taskQueue          string
	policies           []models.EscalationPolicy
	evaluationInterval time.Duration
	delivery           DeliverySettings
}

func NewStarter(c WorkflowClient, taskQueue string, policies []models.EscalationPolicy, evaluationInterval time.Duration, delivery DeliverySettings) *Starter {
	return &Starter{
		client:             c,
		taskQueue:          taskQueue,
		policies:           policies,
		evaluationInterval: evaluationInterval,
		delivery:           delivery,
	}
}

// Open starts the escalation workflow of incident. It reports false, and no
// error, when that incident's workflow is already running.
func (s *Starter) Open(ctx context.Context, incident models.Incident) (bool, error) {
	opts := client.StartWorkflowOptions{
		ID:                                       EscalationWorkflowID(incident.ID),
		TaskQueue:                                s.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, EscalationWorkflow, models.EscalationInput{
		Incident:           incident,
		Policies:           s.policies,
		EvaluationInterval: s.evaluationInterval,
	})
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return false, nil
		}
		return false, fmt.Errorf("start escalation for %s: %w", incident.ID, err)
	}
	return true, nil
}

// Deliver schedules the delivery workflow of env. A second call with the
// same event id is a no-op.
func (s *Starter) Deliver(ctx context.Context, env models.OutboundTicketEnvelope) error {
	opts := client.StartWorkflowOptions{
		ID:                                       DeliveryWorkflowID(env.EventID),
		TaskQueue:                                s.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, DeliveryWorkflow, models.DeliveryInput{
		Envelope:    env,
		MaxAttempts: s.delivery.MaxAttempts,
		BaseDelay:   s.delivery.BaseDelay,
		MaxDelay:    s.delivery.MaxDelay,
	})
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return nil
		}
		return fmt.Errorf("start delivery %s: %w", env.EventID, err)
	}
	return nil
}

// Ack acknowledges the incident, pausing its escalation.
func (s *Starter) Ack(ctx context.Context, incidentID, responder string) error {
	return s.client.SignalWorkflow(ctx, EscalationWorkflowID(incidentID), "", SignalAck, models.AckSignal{Responder: responder})
}

// Resolve ends the incident's escalation.
func (s *Starter) Resolve(ctx context.Context, incidentID, responder string) error {
	return s.client.SignalWorkflow(ctx, EscalationWorkflowID(incidentID), "", SignalResolve, models.ResolveSignal{Responder: responder})
}

// Status queries the current escalation snapshot of an incident.
func (s *Starter) Status(ctx context.Context, incidentID string) (*models.EscalationSnapshot, error) {
	resp, err := s.client.QueryWorkflow(ctx, EscalationWorkflowID(incidentID), "", QueryState)
	if err != nil {
		return nil, err
	}
	var snapshot models.EscalationSnapshot
	if err := resp.Get(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
