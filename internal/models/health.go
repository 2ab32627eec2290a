package models

import "time"

// HeartbeatStatus is the health a service reports about itself
type HeartbeatStatus string

const (
	HeartbeatOK       HeartbeatStatus = "ok"
	HeartbeatDegraded HeartbeatStatus = "degraded"
	HeartbeatDown     HeartbeatStatus = "down"
)

// Valid reports whether s is one of the known statuses
func (s HeartbeatStatus) Valid() bool {
	switch s {
	case HeartbeatOK, HeartbeatDegraded, HeartbeatDown:
		return true
	}
	return false
}

// HeartbeatRecord is one health report from the heartbeat feed
type HeartbeatRecord struct {
	ID         string          `json:"id"`
	ServiceKey string          `json:"service_key"`
	Status     HeartbeatStatus `json:"status"`
	LatencyMs  *int            `json:"latency_ms,omitempty"`
	QueueDepth int             `json:"queue_depth"`
	Detail     string          `json:"detail,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// AlertKind identifies the condition a watchdog alert reports
type AlertKind string

const (
	AlertStale         AlertKind = "stale"
	AlertDown          AlertKind = "down"
	AlertQueueWarning  AlertKind = "queue-warning"
	AlertQueueCritical AlertKind = "queue-critical"
)

// WatchdogAlert is derived on every evaluation cycle; never stored on its own
type WatchdogAlert struct {
	ID         string    `json:"id"`
	Kind       AlertKind `json:"kind"`
	ServiceKey string    `json:"service_key"`
	Title      string    `json:"title"`
	Detail     string    `json:"detail"`
	Severity   Severity  `json:"severity"`
}

// WatchdogSummary is the point-in-time health of every reporting service
type WatchdogSummary struct {
	Uptime24hPct     int             `json:"uptime_24h_pct"`
	MaxQueueDepth    int             `json:"max_queue_depth"`
	DegradedServices int             `json:"degraded_services"`
	DownServices     int             `json:"down_services"`
	Alerts           []WatchdogAlert `json:"alerts"`
	EvaluatedAt      time.Time       `json:"evaluated_at"`
}
