package workflows

import (
	"context"
	"sync"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

type auditSink struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *auditSink) Record(_ context.Context, entry models.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditSink) kinds() []models.AuditKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditKind, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Kind)
	}
	return out
}

type incidentSink struct {
	mu          sync.Mutex
	upserted    []models.Incident
	statuses    []models.IncidentStatus
	escalations []models.EscalationState
}

func (s *incidentSink) Upsert(_ context.Context, inc models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, inc)
	return nil
}

func (s *incidentSink) SetStatus(_ context.Context, _ string, status models.IncidentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *incidentSink) SaveEscalation(_ context.Context, st models.EscalationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations = append(s.escalations, st)
	return nil
}

type publisherStub struct {
	mu      sync.Mutex
	actions []models.RemediationAction
}

func (p *publisherStub) Publish(_ context.Context, action models.RemediationAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
	return nil
}

type sendResult struct {
	status int
	err    error
}

// scriptedSender replays results in order and repeats the last one.
type scriptedSender struct {
	mu      sync.Mutex
	script  []sendResult
	calls   int
	eventID []string
}

func (s *scriptedSender) Send(_ context.Context, env models.OutboundTicketEnvelope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID = append(s.eventID, env.EventID)
	r := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		r = s.script[s.calls]
	}
	s.calls++
	return r.status, r.err
}

func unavailable() sendResult {
	return sendResult{status: 503, err: apperr.New(apperr.ErrUpstreamUnavailable, "openclaw answered 503")}
}

func rejected() sendResult {
	return sendResult{status: 400, err: apperr.New(apperr.ErrUpstreamRejected, "openclaw answered 400")}
}
