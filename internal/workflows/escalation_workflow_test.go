package workflows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"incident-pipeline/internal/activities"
	"incident-pipeline/internal/autopilot"
	"incident-pipeline/internal/models"
)

type EscalationWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env       *testsuite.TestWorkflowEnvironment
	audit     *auditSink
	incidents *incidentSink
	publisher *publisherStub
}

func TestEscalationWorkflow(t *testing.T) {
	suite.Run(t, new(EscalationWorkflowTestSuite))
}

func (s *EscalationWorkflowTestSuite) SetupTest() {
	s.audit = &auditSink{}
	s.incidents = &incidentSink{}
	s.publisher = &publisherStub{}
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&activities.Activities{
		Audit:     s.audit,
		Incidents: s.incidents,
		Publisher: s.publisher,
	})
}

func (s *EscalationWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func policies() []models.EscalationPolicy {
	return []models.EscalationPolicy{
		{Severity: models.SeverityCritical, EscalateAfterMinutes: 0, ReminderEveryMinutes: 15, Active: true},
		{Severity: models.SeverityWarning, EscalateAfterMinutes: 30, ReminderEveryMinutes: 60, Active: true},
		{Severity: models.SeverityInfo, EscalateAfterMinutes: 60, Active: false},
	}
}

func (s *EscalationWorkflowTestSuite) incident(severity models.Severity) models.Incident {
	return models.Incident{
		ID:          "down-spa",
		Title:       "Service spa is down",
		Summary:     "heartbeat reported down",
		Severity:    severity,
		Status:      models.IncidentOpen,
		Source:      "watchdog",
		ServiceKey:  "spa",
		RunbookSlug: autopilot.RunbookServiceDown,
		OpenedAt:    s.env.Now(),
	}
}

func decisionKinds(snapshot models.EscalationSnapshot) []models.DecisionKind {
	out := make([]models.DecisionKind, 0, len(snapshot.Decisions))
	for _, d := range snapshot.Decisions {
		out = append(out, d.Kind)
	}
	return out
}

func (s *EscalationWorkflowTestSuite) Test_CriticalEscalatesThenReminds() {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "alice"})
	}, 30*time.Minute+30*time.Second)

	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident:           s.incident(models.SeverityCritical),
		Policies:           policies(),
		EvaluationInterval: time.Minute,
	})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var snapshot models.EscalationSnapshot
	s.NoError(s.env.GetWorkflowResult(&snapshot))
	s.Equal([]models.DecisionKind{models.DecisionEscalate, models.DecisionRemind, models.DecisionRemind}, decisionKinds(snapshot))
	s.Equal(models.IncidentResolved, snapshot.Incident.Status)
	s.Equal("alice", snapshot.ResolvedBy)
	s.Require().NotNil(snapshot.Escalation)
	s.NotNil(snapshot.Escalation.EscalatedAt)
	s.NotNil(snapshot.Escalation.LastReminderAt)

	s.Len(s.incidents.upserted, 1)
	s.Len(s.incidents.escalations, 3)
	s.Equal([]models.IncidentStatus{models.IncidentResolved}, s.incidents.statuses)

	s.Require().Len(s.publisher.actions, 1)
	s.Equal("restart_service", s.publisher.actions[0].ActionKey)
	s.Equal("spa", s.publisher.actions[0].ServiceKey)

	s.Equal([]models.AuditKind{
		models.AuditAction,
		models.AuditDecision,
		models.AuditDecision,
		models.AuditDecision,
	}, s.audit.kinds())
}

func (s *EscalationWorkflowTestSuite) Test_AckPausesEscalation() {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalAck, models.AckSignal{Responder: "bob"})
	}, 10*time.Minute)

	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(QueryState)
		s.Require().NoError(err)
		var snapshot models.EscalationSnapshot
		s.Require().NoError(val.Get(&snapshot))
		s.Equal(models.IncidentAcknowledged, snapshot.Incident.Status)
		s.Equal("bob", snapshot.AckedBy)
		s.Empty(snapshot.Decisions)
		s.Nil(snapshot.Escalation)
	}, 2*time.Hour)

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "bob"})
	}, 2*time.Hour+time.Minute)

	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident:           s.incident(models.SeverityWarning),
		Policies:           policies(),
		EvaluationInterval: time.Minute,
	})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var snapshot models.EscalationSnapshot
	s.NoError(s.env.GetWorkflowResult(&snapshot))
	s.Empty(snapshot.Decisions)
	s.Equal([]models.IncidentStatus{models.IncidentAcknowledged, models.IncidentResolved}, s.incidents.statuses)
	s.Empty(s.incidents.escalations)
}

func (s *EscalationWorkflowTestSuite) Test_WarningEscalatesAfterDelay() {
	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(QueryState)
		s.Require().NoError(err)
		var snapshot models.EscalationSnapshot
		s.Require().NoError(val.Get(&snapshot))
		s.Empty(snapshot.Decisions)
	}, 29*time.Minute+30*time.Second)

	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "carol"})
	}, 45*time.Minute)

	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident:           s.incident(models.SeverityWarning),
		Policies:           policies(),
		EvaluationInterval: time.Minute,
	})

	s.True(s.env.IsWorkflowCompleted())
	var snapshot models.EscalationSnapshot
	s.NoError(s.env.GetWorkflowResult(&snapshot))
	s.Equal([]models.DecisionKind{models.DecisionEscalate}, decisionKinds(snapshot))
	s.Require().NotNil(snapshot.Escalation)
	s.Nil(snapshot.Escalation.LastReminderAt)
}

func (s *EscalationWorkflowTestSuite) Test_InactivePolicySkipsOnce() {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "dave"})
	}, 3*time.Hour)

	inc := s.incident(models.SeverityInfo)
	inc.RunbookSlug = ""

	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident: inc,
		Policies: policies(),
	})

	s.True(s.env.IsWorkflowCompleted())
	var snapshot models.EscalationSnapshot
	s.NoError(s.env.GetWorkflowResult(&snapshot))
	s.Equal([]models.DecisionKind{models.DecisionSkip}, decisionKinds(snapshot))
	s.Nil(snapshot.Escalation)
	s.Empty(s.publisher.actions)
	s.Empty(s.incidents.escalations)
}

func (s *EscalationWorkflowTestSuite) Test_ResolveBeforeFirstTimer() {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "erin"})
	}, 10*time.Second)

	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident:           s.incident(models.SeverityWarning),
		Policies:           policies(),
		EvaluationInterval: time.Minute,
	})

	s.True(s.env.IsWorkflowCompleted())
	var snapshot models.EscalationSnapshot
	s.NoError(s.env.GetWorkflowResult(&snapshot))
	s.Equal("erin", snapshot.ResolvedBy)
	s.Empty(snapshot.Decisions)
}

func (s *EscalationWorkflowTestSuite) Test_ContinuedRunDoesNotRedispatch() {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalResolve, models.ResolveSignal{Responder: "frank"})
	}, 10*time.Second)

	// Not yet escalated when the previous run continued as new.
	s.env.ExecuteWorkflow(EscalationWorkflow, models.EscalationInput{
		Incident:           s.incident(models.SeverityWarning),
		Policies:           policies(),
		EvaluationInterval: time.Minute,
		Continued:          true,
	})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.Empty(s.incidents.upserted)
	s.Empty(s.publisher.actions)
	s.NotContains(s.audit.kinds(), models.AuditAction)
}
