package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apptime "github.com/tally/backend/internal/application/timetracking"
	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/shared/valueobject"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/infrastructure/telemetry"
)

// ErrNoBillableEntries is returned when a period has nothing left to invoice.
var ErrNoBillableEntries = shared.NewDomainError("NO_BILLABLE_ENTRIES", "No uninvoiced billable time entries in the period")

// ErrInvoiceNumberTaken is returned when an invoice number is reused.
var ErrInvoiceNumberTaken = shared.NewDomainError("ALREADY_EXISTS", "Invoice number is already in use")

// Options shared by InvoiceService and PaymentService.
type Options struct {
	Calendar        timetracking.Calendar
	DefaultCurrency valueobject.Currency
	Metrics         *telemetry.BillingMetrics
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Calendar.IsZero() {
		o.Calendar = timetracking.BerlinCalendar()
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = valueobject.DefaultCurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) currency(code string) (valueobject.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return o.DefaultCurrency, nil
	}
	c, err := valueobject.ParseCurrency(code)
	if err != nil {
		return "", shared.NewDomainError("INVALID_CURRENCY", err.Error())
	}
	return c, nil
}

// InvoiceService manages the invoice lifecycle.
type InvoiceService struct {
	scope       TransactionScope
	invoiceRepo invoicing.InvoiceRepository
	entryRepo   timetracking.TimeEntryRepository
	opts        Options
}

// NewInvoiceService creates an InvoiceService.
func NewInvoiceService(
	scope TransactionScope,
	invoiceRepo invoicing.InvoiceRepository,
	entryRepo timetracking.TimeEntryRepository,
	opts Options,
) *InvoiceService {
	return &InvoiceService{
		scope:       scope,
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		opts:        opts.withDefaults(),
	}
}

// CreateInvoice creates a draft invoice.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceNumber, req.InvoiceNumber)

	currency, err := s.opts.currency(req.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	total, err := valueobject.NewMoney(req.TotalAmount, currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	inv, err := invoicing.NewInvoice(req.InvoiceNumber, req.ClientName, total, req.DueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	inv.ProjectID = req.ProjectID
	inv.Notes = strings.TrimSpace(req.Notes)

	if err := s.ensureNumberFree(ctx, s.invoiceRepo, inv.InvoiceNumber); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, inv.ID.String())
	logger.L(ctx).Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.Total().String()),
	)
	resp := ToInvoiceResponse(inv, s.opts.Now())
	return &resp, nil
}

// CreateInvoiceFromTimeEntries bills every uninvoiced billable entry of a
// project in the period and marks those entries as invoiced. Both writes
// share one transaction.
func (s *InvoiceService) CreateInvoiceFromTimeEntries(ctx context.Context, req InvoiceFromEntriesRequest) (*BilledInvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_from_time_entries")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, req.ProjectID.String(),
		telemetry.SpanAttrInvoiceNumber, req.InvoiceNumber,
	)

	if !req.HourlyRate.IsPositive() {
		err := shared.NewDomainError("INVALID_RATE", "Hourly rate must be positive")
		telemetry.RecordError(span, err)
		return nil, err
	}
	currency, err := s.opts.currency(req.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result BilledInvoiceResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := s.ensureNumberFree(ctx, repos.InvoiceRepo(), req.InvoiceNumber); err != nil {
			return err
		}

		entries, err := apptime.LoadPeriodEntries(ctx, repos.EntryRepo(), s.opts.Calendar, req.ProjectID, req.From, req.To, true)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrNoBillableEntries
		}

		hours := decimal.Zero
		amount := decimal.Zero
		for i := range entries {
			hours = hours.Add(entries[i].DurationHours)
			amount = amount.Add(entries[i].AmountFor(req.HourlyRate))
		}
		total, err := valueobject.NewMoney(amount, currency)
		if err != nil {
			return err
		}
		inv, err := invoicing.NewInvoice(req.InvoiceNumber, req.ClientName, total, req.DueDate)
		if err != nil {
			return err
		}
		projectID := req.ProjectID
		inv.ProjectID = &projectID
		inv.Notes = strings.TrimSpace(req.Notes)
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		billed := make([]*timetracking.TimeEntry, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i := range entries {
			if err := entries[i].MarkInvoiced(inv.ID); err != nil {
				return err
			}
			billed[i] = &entries[i]
			ids[i] = entries[i].ID
		}
		if err := repos.EntryRepo().MarkInvoiced(ctx, inv.ID, billed); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				return err
			}
			return fmt.Errorf("failed to mark time entries invoiced: %w", err)
		}

		result = BilledInvoiceResponse{
			Invoice:     ToInvoiceResponse(inv, s.opts.Now()),
			EntryIDs:    ids,
			BilledHours: hours,
			HourlyRate:  req.HourlyRate,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, result.Invoice.ID.String(),
		telemetry.SpanAttrDurationHours, result.BilledHours.String(),
	)
	logger.L(ctx).Info("invoice created from time entries",
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.Int("entries", len(result.EntryIDs)),
		zap.String("hours", result.BilledHours.String()),
	)
	return &result, nil
}

// IssueInvoice moves a draft to ISSUED. A zero issueDate means today.
func (s *InvoiceService) IssueInvoice(ctx context.Context, invoiceID uuid.UUID, issueDate time.Time) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if issueDate.IsZero() {
		issueDate = s.opts.Now()
	}
	if err := inv.Issue(issueDate); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	resp := ToInvoiceResponse(inv, s.opts.Now())
	return &resp, nil
}

// CancelInvoice voids an unpaid invoice and frees its time entries for
// another invoice.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var inv *invoicing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := inv.Cancel(); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		entries, err := repos.EntryRepo().FindByInvoice(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to load billed time entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		released := make([]*timetracking.TimeEntry, len(entries))
		for i := range entries {
			entries[i].ReleaseInvoice(invoiceID)
			released[i] = &entries[i]
		}
		if err := repos.EntryRepo().SaveBatch(ctx, released); err != nil {
			return fmt.Errorf("failed to release time entries: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.opts.Now())
	return &resp, nil
}

// GetInvoice returns one invoice.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.opts.Now())
	return &resp, nil
}

// ListInvoices returns one page of invoices.
func (s *InvoiceService) ListInvoices(ctx context.Context, q ListInvoicesQuery) (shared.Paginated[InvoiceResponse], error) {
	filter := invoicing.InvoiceFilter{
		Filter:     shared.DefaultFilter(),
		ClientName: strings.TrimSpace(q.ClientName),
		ProjectID:  q.ProjectID,
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	if q.Status != "" {
		status := invoicing.InvoiceStatus(strings.ToUpper(q.Status))
		if !status.IsValid() {
			return shared.Paginated[InvoiceResponse]{}, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unknown invoice status %q", q.Status))
		}
		filter.Status = &status
	}
	if q.BillingStatus != "" {
		bs := invoicing.BillingStatus(strings.ToUpper(q.BillingStatus))
		if !bs.IsValid() {
			return shared.Paginated[InvoiceResponse]{}, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unknown billing status %q", q.BillingStatus))
		}
		filter.BillingStatus = &bs
	}

	invoices, err := s.invoiceRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, fmt.Errorf("failed to list invoices: %w", err)
	}
	total, err := s.invoiceRepo.Count(ctx, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, fmt.Errorf("failed to count invoices: %w", err)
	}

	now := s.opts.Now()
	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func (s *InvoiceService) ensureNumberFree(ctx context.Context, repo invoicing.InvoiceRepository, number string) error {
	exists, err := repo.ExistsByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return fmt.Errorf("failed to check invoice number: %w", err)
	}
	if exists {
		return ErrInvoiceNumberTaken
	}
	return nil
}
