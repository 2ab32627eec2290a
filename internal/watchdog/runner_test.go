package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-pipeline/internal/models"
)

type staticSource struct {
	mu    sync.Mutex
	beats []models.HeartbeatRecord
}

func (s *staticSource) set(beats ...models.HeartbeatRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats = beats
}

func (s *staticSource) Snapshot() []models.HeartbeatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HeartbeatRecord(nil), s.beats...)
}

func (s *staticSource) Services() int { return len(LatestByService(s.Snapshot())) }

type auditLog struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *auditLog) Record(_ context.Context, e models.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

type openerStub struct {
	mu      sync.Mutex
	opened  map[string]models.Incident
	calls   int
	failFor string
}

func (o *openerStub) Open(_ context.Context, inc models.Incident) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if inc.ID == o.failFor {
		return false, errors.New("temporal unavailable")
	}
	if _, ok := o.opened[inc.ID]; ok {
		return false, nil
	}
	o.opened[inc.ID] = inc
	return true, nil
}

func newTestRunner(src Source, audit Auditor, opener IncidentOpener) *Runner {
	log, _ := test.NewNullLogger()
	r := NewRunner(RunnerConfig{Interval: time.Minute, StaleAfter: 20 * time.Minute}, src, audit, opener, nil, log)
	r.now = func() time.Time { return now }
	return r
}

func TestRunnerEvaluateOpensIncidentsOnce(t *testing.T) {
	src := &staticSource{}
	src.set(
		hb("pms", models.HeartbeatDown, 0, time.Minute),
		hb("pos", models.HeartbeatOK, 12, time.Minute),
	)
	audit := &auditLog{}
	opener := &openerStub{opened: map[string]models.Incident{}}
	r := newTestRunner(src, audit, opener)

	_, ok := r.Latest()
	assert.False(t, ok)

	summary := r.Evaluate(context.Background())
	assert.Equal(t, 50, summary.Uptime24hPct)
	require.Len(t, opener.opened, 2)

	down := opener.opened["down-pms"]
	assert.Equal(t, models.SeverityCritical, down.Severity)
	assert.Equal(t, "service-down", down.RunbookSlug)
	assert.Equal(t, "pms", down.ServiceKey)
	assert.Equal(t, now, down.OpenedAt)
	assert.Equal(t, "queue-backlog-warning", opener.opened["queue-warning-pos"].RunbookSlug)
	assert.Len(t, audit.entries, 2)

	r.Evaluate(context.Background())
	assert.Equal(t, 2, opener.calls)
	assert.Len(t, audit.entries, 2)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, summary, latest)
}

func TestRunnerReRaisesAfterClear(t *testing.T) {
	src := &staticSource{}
	audit := &auditLog{}
	r := newTestRunner(src, audit, nil)

	src.set(hb("spa", models.HeartbeatDown, 0, time.Minute))
	r.Evaluate(context.Background())
	src.set(hb("spa", models.HeartbeatOK, 0, 0))
	r.Evaluate(context.Background())
	src.set(hb("spa", models.HeartbeatDown, 0, 0))
	r.Evaluate(context.Background())

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "down-spa", audit.entries[0].Subject)
	assert.Equal(t, models.AuditAlert, audit.entries[1].Kind)
}

func TestRunnerOpenerFailureDoesNotStopCycle(t *testing.T) {
	src := &staticSource{}
	src.set(
		hb("a", models.HeartbeatDown, 0, time.Minute),
		hb("b", models.HeartbeatDown, 0, time.Minute),
	)
	audit := &auditLog{}
	opener := &openerStub{opened: map[string]models.Incident{}, failFor: "down-a"}
	r := newTestRunner(src, audit, opener)

	r.Evaluate(context.Background())
	assert.Contains(t, opener.opened, "down-b")
	assert.NotContains(t, opener.opened, "down-a")
	assert.Equal(t, 2, opener.calls)

	// Still failing: retried, not audited again.
	r.Evaluate(context.Background())
	assert.Equal(t, 3, opener.calls)
	assert.NotContains(t, opener.opened, "down-a")

	opener.mu.Lock()
	opener.failFor = ""
	opener.mu.Unlock()

	r.Evaluate(context.Background())
	assert.Contains(t, opener.opened, "down-a")
	assert.Equal(t, 4, opener.calls)

	r.Evaluate(context.Background())
	assert.Equal(t, 4, opener.calls)
	assert.Len(t, audit.entries, 2)
}

func TestRunnerForgetsFailedOpenOnceCleared(t *testing.T) {
	src := &staticSource{}
	src.set(hb("a", models.HeartbeatDown, 0, time.Minute))
	opener := &openerStub{opened: map[string]models.Incident{}, failFor: "down-a"}
	r := newTestRunner(src, &auditLog{}, opener)

	r.Evaluate(context.Background())
	src.set(hb("a", models.HeartbeatOK, 0, 0))
	r.Evaluate(context.Background())
	assert.Equal(t, 1, opener.calls)
	assert.Empty(t, r.unopened)
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	src := &staticSource{}
	src.set(hb("a", models.HeartbeatOK, 0, 0))
	r := newTestRunner(src, &auditLog{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := r.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
