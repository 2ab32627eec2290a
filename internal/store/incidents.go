package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// IncidentRow is the incidents table.
type IncidentRow struct {
	ID          string `gorm:"primaryKey;size:128"`
	Title       string `gorm:"size:255"`
	Summary     string `gorm:"type:text"`
	Severity    string `gorm:"size:16"`
	Status      string `gorm:"size:16;index"`
	Source      string `gorm:"size:64"`
	ServiceKey  string `gorm:"size:128;index"`
	RunbookSlug string `gorm:"size:128"`
	OpenedAt    time.Time
	UpdatedAt   time.Time
}

func (IncidentRow) TableName() string { return "incidents" }

// EscalationRow is the escalation_states table, one row per incident.
type EscalationRow struct {
	IncidentID     string `gorm:"primaryKey;size:128"`
	EscalatedAt    *time.Time
	LastReminderAt *time.Time
	UpdatedAt      time.Time
}

func (EscalationRow) TableName() string { return "escalation_states" }

// Incidents stores incidents and the escalation state the autopilot keeps for them.
type Incidents struct {
	db *gorm.DB
}

func NewIncidents(db *gorm.DB) *Incidents {
	return &Incidents{db: db}
}

// Upsert inserts the incident or refreshes its mutable columns.
func (s *Incidents) Upsert(ctx context.Context, inc models.Incident) error {
	row := IncidentRow{
		ID:          inc.ID,
		Title:       inc.Title,
		Summary:     inc.Summary,
		Severity:    string(inc.Severity),
		Status:      string(inc.Status),
		Source:      inc.Source,
		ServiceKey:  inc.ServiceKey,
		RunbookSlug: inc.RunbookSlug,
		OpenedAt:    inc.OpenedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "summary", "status", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert incident %s: %w", inc.ID, err)
	}
	return nil
}

// SetStatus records an acknowledgement or resolution.
func (s *Incidents) SetStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	res := s.db.WithContext(ctx).Model(&IncidentRow{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("update incident %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.ErrNotFound, "incident not found")
	}
	return nil
}

// Get loads one incident.
func (s *Incidents) Get(ctx context.Context, id string) (models.Incident, error) {
	var row IncidentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Incident{}, apperr.New(apperr.ErrNotFound, "incident not found")
	}
	if err != nil {
		return models.Incident{}, fmt.Errorf("load incident %s: %w", id, err)
	}
	return models.Incident{
		ID:          row.ID,
		Title:       row.Title,
		Summary:     row.Summary,
		Severity:    models.Severity(row.Severity),
		Status:      models.IncidentStatus(row.Status),
		Source:      row.Source,
		ServiceKey:  row.ServiceKey,
		RunbookSlug: row.RunbookSlug,
		OpenedAt:    row.OpenedAt,
	}, nil
}

// SaveEscalation overwrites the escalation state of an incident.
func (s *Incidents) SaveEscalation(ctx context.Context, st models.EscalationState) error {
	row := EscalationRow{
		IncidentID:     st.IncidentID,
		EscalatedAt:    st.EscalatedAt,
		LastReminderAt: st.LastReminderAt,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save escalation %s: %w", st.IncidentID, err)
	}
	return nil
}

// GetEscalation returns nil when the incident was never escalated.
func (s *Incidents) GetEscalation(ctx context.Context, incidentID string) (*models.EscalationState, error) {
	var row EscalationRow
	err := s.db.WithContext(ctx).First(&row, "incident_id = ?", incidentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load escalation %s: %w", incidentID, err)
	}
	return &models.EscalationState{
		IncidentID:     row.IncidentID,
		EscalatedAt:    row.EscalatedAt,
		LastReminderAt: row.LastReminderAt,
	}, nil
}
