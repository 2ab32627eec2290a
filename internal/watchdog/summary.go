// Package watchdog turns heartbeat snapshots into health summaries and alerts.
package watchdog

import (
	"fmt"
	"math"
	"sort"
	"time"

	"incident-pipeline/internal/models"
)

const (
	// DefaultStaleAfter is how old a latest heartbeat may get before it is stale.
	DefaultStaleAfter = 20 * time.Minute

	QueueWarningDepth  = 10
	QueueCriticalDepth = 25
)

// Options parameterise one evaluation.
type Options struct {
	Now        time.Time
	StaleAfter time.Duration
}

// AlertID is the stable id of an alert for kind on serviceKey.
func AlertID(kind models.AlertKind, serviceKey string) string {
	return string(kind) + "-" + serviceKey
}

// kindRank breaks ties between alerts of the same severity and service.
func kindRank(k models.AlertKind) int {
	switch k {
	case models.AlertDown:
		return 0
	case models.AlertStale:
		return 1
	case models.AlertQueueCritical:
		return 2
	default:
		return 3
	}
}

// LatestByService keeps the most recent record per service. Ties on
// ObservedAt keep the record that came last in the input.
func LatestByService(heartbeats []models.HeartbeatRecord) map[string]models.HeartbeatRecord {
	latest := make(map[string]models.HeartbeatRecord, len(heartbeats))
	for _, hb := range heartbeats {
		cur, ok := latest[hb.ServiceKey]
		if !ok || !hb.ObservedAt.Before(cur.ObservedAt) {
			latest[hb.ServiceKey] = hb
		}
	}
	return latest
}

// BuildSummary evaluates heartbeats as a snapshot. It is pure: the same
// inputs always yield the same summary and alert ids.
func BuildSummary(heartbeats []models.HeartbeatRecord, opts Options) models.WatchdogSummary {
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	latest := LatestByService(heartbeats)
	summary := models.WatchdogSummary{
		Uptime24hPct: 100,
		Alerts:       []models.WatchdogAlert{},
		EvaluatedAt:  opts.Now,
	}

	for key, hb := range latest {
		switch hb.Status {
		case models.HeartbeatDown:
			summary.DownServices++
			summary.Alerts = append(summary.Alerts, models.WatchdogAlert{
				ID:         AlertID(models.AlertDown, key),
				Kind:       models.AlertDown,
				ServiceKey: key,
				Title:      fmt.Sprintf("%s is down", key),
				Detail:     detailOr(hb.Detail, "Latest heartbeat reported status down"),
				Severity:   models.SeverityCritical,
			})
		case models.HeartbeatDegraded:
			summary.DegradedServices++
		}

		if age := opts.Now.Sub(hb.ObservedAt); age > staleAfter {
			summary.Alerts = append(summary.Alerts, models.WatchdogAlert{
				ID:         AlertID(models.AlertStale, key),
				Kind:       models.AlertStale,
				ServiceKey: key,
				Title:      fmt.Sprintf("%s heartbeat is stale", key),
				Detail:     fmt.Sprintf("No heartbeat for %d minutes (threshold %d)", int(age.Minutes()), int(staleAfter.Minutes())),
				Severity:   models.SeverityWarning,
			})
		}

		switch {
		case hb.QueueDepth >= QueueCriticalDepth:
			summary.Alerts = append(summary.Alerts, models.WatchdogAlert{
				ID:         AlertID(models.AlertQueueCritical, key),
				Kind:       models.AlertQueueCritical,
				ServiceKey: key,
				Title:      fmt.Sprintf("%s queue backlog is critical", key),
				Detail:     fmt.Sprintf("Queue depth %d >= %d", hb.QueueDepth, QueueCriticalDepth),
				Severity:   models.SeverityCritical,
			})
		case hb.QueueDepth >= QueueWarningDepth:
			summary.Alerts = append(summary.Alerts, models.WatchdogAlert{
				ID:         AlertID(models.AlertQueueWarning, key),
				Kind:       models.AlertQueueWarning,
				ServiceKey: key,
				Title:      fmt.Sprintf("%s queue backlog is growing", key),
				Detail:     fmt.Sprintf("Queue depth %d >= %d", hb.QueueDepth, QueueWarningDepth),
				Severity:   models.SeverityWarning,
			})
		}

		if hb.QueueDepth > summary.MaxQueueDepth {
			summary.MaxQueueDepth = hb.QueueDepth
		}
	}

	// degraded counts as up
	if n := len(latest); n > 0 {
		summary.Uptime24hPct = int(math.Round(100 * float64(n-summary.DownServices) / float64(n)))
	}

	sort.Slice(summary.Alerts, func(i, j int) bool {
		a, b := summary.Alerts[i], summary.Alerts[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.ServiceKey != b.ServiceKey {
			return a.ServiceKey < b.ServiceKey
		}
		return kindRank(a.Kind) < kindRank(b.Kind)
	})
	return summary
}

func detailOr(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
