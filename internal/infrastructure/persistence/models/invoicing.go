package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	ClientName    string                  `gorm:"type:varchar(200);not null;index"`
	ProjectID     *uuid.UUID              `gorm:"type:uuid;index"`
	TotalAmount   decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Currency      string                  `gorm:"type:varchar(3);not null;default:'EUR'"`
	Status        invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	BillingStatus invoicing.BillingStatus `gorm:"type:varchar(20);not null;index"`
	PaidAmount    decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Balance       decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Warnings      []string                `gorm:"type:jsonb;serializer:json"`
	Notes         string                  `gorm:"type:text"`
	IssueDate     *time.Time              `gorm:"index"`
	DueDate       *time.Time
	CancelledAt   *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	warnings := m.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &invoicing.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		ClientName:        m.ClientName,
		ProjectID:         m.ProjectID,
		TotalAmount:       m.TotalAmount,
		Currency:          valueobject.Currency(m.Currency),
		Status:            m.Status,
		BillingStatus:     m.BillingStatus,
		PaidAmount:        m.PaidAmount,
		Balance:           m.Balance,
		Warnings:          warnings,
		Notes:             m.Notes,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		CancelledAt:       m.CancelledAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientName = inv.ClientName
	m.ProjectID = inv.ProjectID
	m.TotalAmount = inv.TotalAmount
	m.Currency = string(inv.Currency)
	m.Status = inv.Status
	m.BillingStatus = inv.BillingStatus
	m.PaidAmount = inv.PaidAmount
	m.Balance = inv.Balance
	m.Warnings = inv.Warnings
	m.Notes = inv.Notes
	m.IssueDate = utcPtr(inv.IssueDate)
	m.DueDate = utcPtr(inv.DueDate)
	m.CancelledAt = utcPtr(inv.CancelledAt)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentRecordModel is the persistence model for a payment or refund.
// Records are append-only.
type PaymentRecordModel struct {
	ID          uuid.UUID             `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID             `gorm:"type:uuid;not null;index:idx_payment_records_invoice_date,priority:1"`
	Kind        invoicing.PaymentKind `gorm:"type:varchar(10);not null"`
	Amount      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Currency    string                `gorm:"type:varchar(3);not null"`
	PaymentDate time.Time             `gorm:"type:date;not null;index:idx_payment_records_invoice_date,priority:2"`
	Reference   string                `gorm:"type:varchar(100);not null;default:''"`
	CreatedAt   time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentRecordModel) TableName() string {
	return "payment_records"
}

// ToDomain converts the persistence model to a domain PaymentRecord.
func (m *PaymentRecordModel) ToDomain() invoicing.PaymentRecord {
	amount, _ := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	return invoicing.PaymentRecord{
		ID:        m.ID,
		InvoiceID: m.InvoiceID,
		Amount:    amount,
		Kind:      m.Kind,
		Date:      civilUTC(m.PaymentDate),
		Reference: m.Reference,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentRecord.
func (m *PaymentRecordModel) FromDomain(p *invoicing.PaymentRecord) {
	m.ID = p.ID
	m.InvoiceID = p.InvoiceID
	m.Kind = p.Kind
	m.Amount = p.Amount.Amount()
	m.Currency = string(p.Amount.Currency())
	m.PaymentDate = civilUTC(p.Date)
	m.Reference = p.Reference
	m.CreatedAt = p.CreatedAt.UTC()
}

// PaymentRecordModelFromDomain creates a new persistence model from a domain PaymentRecord.
func PaymentRecordModelFromDomain(p *invoicing.PaymentRecord) *PaymentRecordModel {
	m := &PaymentRecordModel{}
	m.FromDomain(p)
	return m
}

// All returns every model, in dependency order, for AutoMigrate in tests.
func All() []any {
	return []any{&TimerModel{}, &InvoiceModel{}, &TimeEntryModel{}, &PaymentRecordModel{}}
}
