package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/timetracking"
)

// TimerModel is the persistence model for a running timer.
// The unique project index enforces one running timer per project.
type TimerModel struct {
	BaseModel
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_timers_project"`
	Description string    `gorm:"type:varchar(500);not null;default:''"`
	StartedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TimerModel) TableName() string {
	return "timers"
}

// ToDomain converts the persistence model to a domain Timer.
func (m *TimerModel) ToDomain() *timetracking.Timer {
	return &timetracking.Timer{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProjectID:   m.ProjectID,
		Description: m.Description,
		StartedAt:   m.StartedAt,
	}
}

// FromDomain populates the persistence model from a domain Timer.
func (m *TimerModel) FromDomain(t *timetracking.Timer) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.ProjectID = t.ProjectID
	m.Description = t.Description
	m.StartedAt = t.StartedAt.UTC()
}

// TimerModelFromDomain creates a new persistence model from a domain Timer.
func TimerModelFromDomain(t *timetracking.Timer) *TimerModel {
	m := &TimerModel{}
	m.FromDomain(t)
	return m
}

// TimeEntryModel is the persistence model for the TimeEntry aggregate root.
type TimeEntryModel struct {
	AggregateModel
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_time_entries_project_start,priority:1"`
	TimerID       *uuid.UUID      `gorm:"type:uuid"`
	Description   string          `gorm:"type:varchar(500);not null;default:''"`
	RawStart      time.Time       `gorm:"not null"`
	RawEnd        time.Time       `gorm:"not null"`
	StartTime     time.Time       `gorm:"not null;index:idx_time_entries_project_start,priority:2"`
	EndTime       time.Time       `gorm:"not null"`
	DurationHours decimal.Decimal `gorm:"type:decimal(8,2);not null"`
	Billable      bool            `gorm:"not null;default:true"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (TimeEntryModel) TableName() string {
	return "time_entries"
}

// ToDomain converts the persistence model to a domain TimeEntry.
func (m *TimeEntryModel) ToDomain() *timetracking.TimeEntry {
	return &timetracking.TimeEntry{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProjectID:         m.ProjectID,
		TimerID:           m.TimerID,
		Description:       m.Description,
		RawStart:          m.RawStart,
		RawEnd:            m.RawEnd,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		DurationHours:     m.DurationHours,
		Billable:          m.Billable,
		InvoiceID:         m.InvoiceID,
	}
}

// FromDomain populates the persistence model from a domain TimeEntry.
func (m *TimeEntryModel) FromDomain(e *timetracking.TimeEntry) {
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	m.ProjectID = e.ProjectID
	m.TimerID = e.TimerID
	m.Description = e.Description
	m.RawStart = e.RawStart.UTC()
	m.RawEnd = e.RawEnd.UTC()
	m.StartTime = e.StartTime.UTC()
	m.EndTime = e.EndTime.UTC()
	m.DurationHours = e.DurationHours
	m.Billable = e.Billable
	m.InvoiceID = e.InvoiceID
}

// TimeEntryModelFromDomain creates a new persistence model from a domain TimeEntry.
func TimeEntryModelFromDomain(e *timetracking.TimeEntry) *TimeEntryModel {
	m := &TimeEntryModel{}
	m.FromDomain(e)
	return m
}
