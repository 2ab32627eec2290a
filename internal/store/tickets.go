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

// TicketRow is the tickets table.
type TicketRow struct {
	ID              string              `gorm:"primaryKey;size:64"`
	TicketID        string              `gorm:"uniqueIndex;size:64"`
	Title           string              `gorm:"size:255"`
	Description     string              `gorm:"type:text"`
	Category        string              `gorm:"size:64"`
	Severity        string              `gorm:"size:16"`
	Priority        string              `gorm:"size:16"`
	Status          string              `gorm:"size:16;index"`
	Source          string              `gorm:"size:64"`
	RequesterID     string              `gorm:"size:64"`
	RequesterName   string              `gorm:"size:128"`
	AssigneeUserID  *string             `gorm:"size:64"`
	HotelID         string              `gorm:"size:64;index"`
	Attachments     []models.Attachment `gorm:"serializer:json"`
	Metadata        map[string]any      `gorm:"serializer:json"`
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

func (TicketRow) TableName() string { return "tickets" }

func ticketRow(t models.TicketRecord) TicketRow {
	return TicketRow{
		ID:              t.ID,
		TicketID:        t.TicketID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Severity:        string(t.Severity),
		Priority:        t.Priority,
		Status:          string(t.Status),
		Source:          t.Source,
		RequesterID:     t.RequesterID,
		RequesterName:   t.RequesterName,
		AssigneeUserID:  t.AssigneeUserID,
		HotelID:         t.HotelID,
		Attachments:     t.Attachments,
		Metadata:        t.Metadata,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r TicketRow) record() models.TicketRecord {
	rec := models.TicketRecord{
		ID:              r.ID,
		TicketID:        r.TicketID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Severity:        models.Severity(r.Severity),
		Priority:        r.Priority,
		Status:          models.TicketStatus(r.Status),
		Source:          r.Source,
		RequesterID:     r.RequesterID,
		RequesterName:   r.RequesterName,
		AssigneeUserID:  r.AssigneeUserID,
		HotelID:         r.HotelID,
		Attachments:     r.Attachments,
		Metadata:        r.Metadata,
		FirstResponseAt: r.FirstResponseAt,
		ResolvedAt:      r.ResolvedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if rec.Attachments == nil {
		rec.Attachments = []models.Attachment{}
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return rec
}

// Tickets is the ticket repository.
type Tickets struct {
	db *gorm.DB
}

func NewTickets(db *gorm.DB) *Tickets {
	return &Tickets{db: db}
}

// Create inserts a new ticket.
func (s *Tickets) Create(ctx context.Context, t models.TicketRecord) error {
	row := ticketRow(t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create ticket %s: %w", t.TicketID, err)
	}
	return nil
}

// Save overwrites an existing ticket.
func (s *Tickets) Save(ctx context.Context, t models.TicketRecord) error {
	row := ticketRow(t)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save ticket %s: %w", t.TicketID, err)
	}
	return nil
}

// SaveCallback overwrites t and records eventID in one transaction. The
// processed_events primary key is the dedup check: when eventID is already
// stored nothing is written and applied is false.
func (s *Tickets) SaveCallback(ctx context.Context, t models.TicketRecord, eventID string) (applied bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ProcessedEventRow{EventID: eventID})
		if res.Error != nil {
			return fmt.Errorf("record event %s: %w", eventID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		row := ticketRow(t)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save ticket %s: %w", t.TicketID, err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Get loads a ticket by uuid.
func (s *Tickets) Get(ctx context.Context, id string) (models.TicketRecord, error) {
	return s.first(ctx, "id = ?", id)
}

// GetByTicketID loads a ticket by its human ticket number.
func (s *Tickets) GetByTicketID(ctx context.Context, ticketID string) (models.TicketRecord, error) {
	return s.first(ctx, "ticket_id = ?", ticketID)
}

// Find prefers uuid over ticket number, matching how callbacks address tickets.
func (s *Tickets) Find(ctx context.Context, uuid, ticketID string) (models.TicketRecord, error) {
	if uuid != "" {
		return s.Get(ctx, uuid)
	}
	return s.GetByTicketID(ctx, ticketID)
}

func (s *Tickets) first(ctx context.Context, query string, arg string) (models.TicketRecord, error) {
	var row TicketRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TicketRecord{}, apperr.New(apperr.ErrNotFound, "ticket not found")
	}
	if err != nil {
		return models.TicketRecord{}, fmt.Errorf("load ticket: %w", err)
	}
	return row.record(), nil
}
