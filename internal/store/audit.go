package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"incident-pipeline/internal/models"
)

// AuditRow is the append-only audit_log table.
type AuditRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Kind      string    `gorm:"size:32;index"`
	Subject   string    `gorm:"size:128;index"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (AuditRow) TableName() string { return "audit_log" }

// ProcessedEventRow remembers callback event ids across restarts.
type ProcessedEventRow struct {
	EventID   string `gorm:"primaryKey;size:128"`
	CreatedAt time.Time
}

func (ProcessedEventRow) TableName() string { return "processed_events" }

// Audit is the fire-and-forget audit sink. Record never returns an error;
// failures are logged and the caller carries on.
type Audit struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewAudit(db *gorm.DB, log logrus.FieldLogger) *Audit {
	return &Audit{db: db, log: log.WithField("component", "audit")}
}

// Record appends entry.
func (a *Audit) Record(ctx context.Context, entry models.AuditEntry) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		a.log.WithError(err).WithField("subject", entry.Subject).Warn("audit payload not encodable")
		payload = []byte("null")
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	row := AuditRow{
		ID:        uuid.NewString(),
		Kind:      string(entry.Kind),
		Subject:   entry.Subject,
		Payload:   string(payload),
		CreatedAt: ts,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"kind":    entry.Kind,
			"subject": entry.Subject,
		}).Error("audit write failed")
	}
}

// ProcessedEvents reads the callback event ids stored by Tickets.SaveCallback.
type ProcessedEvents struct {
	db *gorm.DB
}

func NewProcessedEvents(db *gorm.DB) *ProcessedEvents {
	return &ProcessedEvents{db: db}
}

// All returns every stored event id, used to seed the in-memory registry.
func (p *ProcessedEvents) All(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).Model(&ProcessedEventRow{}).Pluck("event_id", &ids).Error
	return ids, err
}
