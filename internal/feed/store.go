// Package feed collects heartbeat records for the watchdog.
package feed

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/metrics"
	"incident-pipeline/internal/models"
)

// DefaultPerService bounds how many records are kept per service.
const DefaultPerService = 16

// Store keeps the most recent heartbeats per service. It is safe for
// concurrent use; Snapshot copies so callers may hold the result freely.
type Store struct {
	mu         sync.RWMutex
	perService int
	records    map[string][]models.HeartbeatRecord
	metrics    *metrics.Metrics
}

// NewStore keeps up to perService records per service (DefaultPerService when <= 0).
func NewStore(perService int, m *metrics.Metrics) *Store {
	if perService <= 0 {
		perService = DefaultPerService
	}
	return &Store{perService: perService, records: map[string][]models.HeartbeatRecord{}, metrics: m}
}

// Normalize fills defaults and rejects records the watchdog cannot use.
func Normalize(hb models.HeartbeatRecord, now time.Time) (models.HeartbeatRecord, error) {
	hb.ServiceKey = strings.TrimSpace(hb.ServiceKey)
	if hb.ServiceKey == "" {
		return hb, apperr.InvalidArgument("service_key is required")
	}
	if !hb.Status.Valid() {
		return hb, apperr.InvalidArgument("status must be ok, degraded or down")
	}
	if hb.QueueDepth < 0 {
		return hb, apperr.InvalidArgument("queue_depth must not be negative")
	}
	if hb.ObservedAt.IsZero() {
		hb.ObservedAt = now
	}
	if hb.ID == "" {
		hb.ID = uuid.NewString()
	}
	return hb, nil
}

// Add appends hb, dropping the oldest records of that service beyond the bound.
func (s *Store) Add(hb models.HeartbeatRecord, source string) error {
	hb, err := Normalize(hb, time.Now().UTC())
	if err != nil {
		return err
	}

	s.mu.Lock()
	list := append(s.records[hb.ServiceKey], hb)
	sort.SliceStable(list, func(i, j int) bool { return list[i].ObservedAt.Before(list[j].ObservedAt) })
	if len(list) > s.perService {
		list = append([]models.HeartbeatRecord(nil), list[len(list)-s.perService:]...)
	}
	s.records[hb.ServiceKey] = list
	s.mu.Unlock()

	s.metrics.HeartbeatIngested(source)
	return nil
}

// Snapshot returns every retained record.
func (s *Store) Snapshot() []models.HeartbeatRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.HeartbeatRecord, 0, len(s.records)*2)
	for _, list := range s.records {
		out = append(out, list...)
	}
	return out
}

// Services returns how many services have reported.
func (s *Store) Services() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
