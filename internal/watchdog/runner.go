package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/autopilot"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
)

// Source provides the heartbeat snapshot to evaluate.
type Source interface {
	Snapshot() []models.HeartbeatRecord
	Services() int
}

// Auditor is the fire-and-forget audit sink.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// IncidentOpener hands an incident to the autopilot. Opening an incident
// that is already being handled must be a no-op reported as started=false.
type IncidentOpener interface {
	Open(ctx context.Context, incident models.Incident) (started bool, err error)
}

// RunnerConfig parameterises the evaluation loop.
type RunnerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// Runner evaluates the heartbeat snapshot on a fixed interval, independent
// of request traffic. Only one evaluation runs at a time.
type Runner struct {
	cfg     RunnerConfig
	source  Source
	audit   Auditor
	opener  IncidentOpener
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time

	evalMu sync.Mutex
	// unopened holds active alerts whose incident could not be opened yet.
	// Guarded by evalMu.
	unopened map[string]bool

	mu     sync.RWMutex
	latest *models.WatchdogSummary
	active map[string]models.WatchdogAlert
}

// NewRunner wires a Runner. opener may be nil to only audit alerts.
func NewRunner(cfg RunnerConfig, source Source, audit Auditor, opener IncidentOpener, m *metrics.Metrics, log logrus.FieldLogger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Runner{
		cfg:     cfg,
		source:  source,
		audit:   audit,
		opener:  opener,
		metrics: m,
		log:     log.WithField("component", "watchdog"),
		now:     func() time.Time { return time.Now().UTC() },
		active:  map[string]models.WatchdogAlert{},

		unopened: map[string]bool{},
	}
}

// Run evaluates once immediately and then every Interval until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.WithField("interval", r.cfg.Interval).Info("watchdog started")
	r.Evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("watchdog stopped")
			return
		case <-ticker.C:
			r.Evaluate(ctx)
		}
	}
}

// Evaluate runs one cycle. Alerts raised since the previous cycle are
// audited and turned into incidents; alerts still active are left alone
// unless opening their incident failed, in which case it is retried.
func (r *Runner) Evaluate(ctx context.Context) models.WatchdogSummary {
	r.evalMu.Lock()
	defer r.evalMu.Unlock()

	now := r.now()
	summary := BuildSummary(r.source.Snapshot(), Options{Now: now, StaleAfter: r.cfg.StaleAfter})
	r.metrics.ObserveSummary(summary, r.source.Services())

	r.mu.Lock()
	previous := r.active
	current := make(map[string]models.WatchdogAlert, len(summary.Alerts))
	for _, a := range summary.Alerts {
		current[a.ID] = a
	}
	r.active = current
	r.latest = &summary
	r.mu.Unlock()

	for _, alert := range summary.Alerts {
		if _, seen := previous[alert.ID]; !seen {
			r.raise(ctx, alert, now)
		} else if !r.unopened[alert.ID] {
			continue
		}
		if r.open(ctx, alert, now) {
			delete(r.unopened, alert.ID)
		} else {
			r.unopened[alert.ID] = true
		}
	}
	for id := range previous {
		if _, still := current[id]; !still {
			delete(r.unopened, id)
			r.log.WithField("alert_id", id).Info("alert cleared")
		}
	}

	r.log.WithFields(logrus.Fields{
		"uptime_pct": summary.Uptime24hPct,
		"down":       summary.DownServices,
		"degraded":   summary.DegradedServices,
		"alerts":     len(summary.Alerts),
	}).Debug("watchdog evaluated")
	return summary
}

func (r *Runner) raise(ctx context.Context, alert models.WatchdogAlert, now time.Time) {
	r.log.WithFields(logrus.Fields{"alert_id": alert.ID, "severity": alert.Severity}).Warn(alert.Title)
	r.audit.Record(ctx, models.AuditEntry{Kind: models.AuditAlert, Subject: alert.ID, Payload: alert, Timestamp: now})
}

// open hands the alert's incident to the opener. It reports false only when
// the opener failed; an incident that is already open counts as opened.
func (r *Runner) open(ctx context.Context, alert models.WatchdogAlert, now time.Time) bool {
	if r.opener == nil {
		return true
	}
	entry := r.log.WithField("alert_id", alert.ID)
	started, err := r.opener.Open(ctx, autopilot.IncidentFromAlert(alert, now))
	switch {
	case err != nil:
		entry.WithError(err).Error("incident could not be opened, retrying next cycle")
		return false
	case started:
		entry.Info("incident opened")
	default:
		entry.Debug("incident already open")
	}
	return true
}

// Latest returns the most recent summary, if any cycle has run.
func (r *Runner) Latest() (models.WatchdogSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return models.WatchdogSummary{}, false
	}
	return *r.latest, true
}
