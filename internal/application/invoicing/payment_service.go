package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/shared/valueobject"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/infrastructure/telemetry"
)

// PaymentRejectedError carries the verdict that refused a record. It matches
// invoicing.ErrPaymentRejected under errors.Is.
type PaymentRejectedError struct {
	Verdict invoicing.ProposedPaymentVerdict
}

func (e *PaymentRejectedError) Error() string {
	if len(e.Verdict.Warnings) == 0 {
		return invoicing.ErrPaymentRejected.Message
	}
	return invoicing.ErrPaymentRejected.Message + ": " + strings.Join(e.Verdict.Warnings, "; ")
}

func (e *PaymentRejectedError) Unwrap() error {
	return invoicing.ErrPaymentRejected
}

// PaymentService books payments and refunds and keeps each invoice's
// reconciliation state current.
type PaymentService struct {
	scope       TransactionScope
	invoiceRepo invoicing.InvoiceRepository
	paymentRepo invoicing.PaymentRepository
	locker      InvoiceLocker
	validation  invoicing.ValidationConfig
	opts        Options
}

// NewPaymentService creates a PaymentService judging records with cfg.
func NewPaymentService(
	scope TransactionScope,
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	locker InvoiceLocker,
	cfg invoicing.ValidationConfig,
	opts Options,
) *PaymentService {
	return &PaymentService{
		scope:       scope,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		locker:      locker,
		validation:  cfg,
		opts:        opts.withDefaults(),
	}
}

// ValidationConfig returns the tolerance and mode records are judged with.
func (s *PaymentService) ValidationConfig() invoicing.ValidationConfig {
	return s.validation
}

// GetBillingState reconciles the invoice's committed payments. Nothing is written.
func (s *PaymentService) GetBillingState(ctx context.Context, invoiceID uuid.UUID) (*invoicing.InvoiceBillingState, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "billing_state")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	inv, payments, err := s.load(ctx, s.invoiceRepo, s.paymentRepo, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	state, err := invoicing.ValidateInvoice(inv.Total(), payments, s.validation)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrBillingStatus, state.Status.String())
	s.opts.Metrics.RecordReconciliation(ctx, state.Status.String(), state.Duplicates.DuplicateCount)
	return &state, nil
}

// ListPayments returns an invoice's payments and refunds ordered by date.
func (s *PaymentService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	_, payments, err := s.load(ctx, s.invoiceRepo, s.paymentRepo, invoiceID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out, nil
}

// PreviewPayment judges a record without booking it.
func (s *PaymentService) PreviewPayment(ctx context.Context, invoiceID uuid.UUID, kind invoicing.PaymentKind, req PaymentRequest) (*invoicing.ProposedPaymentVerdict, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "preview")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrPaymentKind, kind.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	inv, payments, err := s.load(ctx, s.invoiceRepo, s.paymentRepo, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	proposed, err := valueobject.NewMoney(req.Amount, inv.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	verdict, err := invoicing.ValidateProposedRecord(inv.Total(), payments, proposed, kind, s.validation)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &verdict, nil
}

// RecordPayment books a payment.
func (s *PaymentService) RecordPayment(ctx context.Context, invoiceID uuid.UUID, req PaymentRequest) (*RecordPaymentResult, error) {
	return s.record(ctx, invoiceID, invoicing.PaymentKindPayment, req)
}

// RecordRefund books a refund.
func (s *PaymentService) RecordRefund(ctx context.Context, invoiceID uuid.UUID, req PaymentRequest) (*RecordPaymentResult, error) {
	return s.record(ctx, invoiceID, invoicing.PaymentKindRefund, req)
}

// record holds the invoice lock while it reads the committed payments, judges
// the new record, stores it and writes the new reconciliation onto the invoice.
func (s *PaymentService) record(ctx context.Context, invoiceID uuid.UUID, kind invoicing.PaymentKind, req PaymentRequest) (*RecordPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrPaymentKind, kind.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrStrictMode, s.validation.StrictMode,
	)

	release, err := s.locker.Acquire(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.L(ctx).Warn("failed to release invoice lock",
				zap.String("invoice_id", invoiceID.String()), zap.Error(rerr))
		}
	}()

	date := s.opts.Now()
	if req.Date != nil {
		date = *req.Date
	}
	date = s.opts.Calendar.CivilDate(date)

	var result RecordPaymentResult
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, payments, err := s.load(ctx, repos.InvoiceRepo(), repos.PaymentRepo(), invoiceID)
		if err != nil {
			return err
		}
		if !inv.CanAcceptPayments() {
			return invoicing.ErrInvoiceNotPayable
		}

		amount, err := valueobject.NewMoney(req.Amount, inv.Currency)
		if err != nil {
			return err
		}
		verdict, err := invoicing.ValidateProposedRecord(inv.Total(), payments, amount, kind, s.validation)
		if err != nil {
			return err
		}
		if kind == invoicing.PaymentKindRefund {
			if exceeds, _ := amount.GreaterThan(verdict.Current.TotalPaid); exceeds {
				return invoicing.ErrRefundExceedsPaid
			}
		}
		if !verdict.IsValid {
			return &PaymentRejectedError{Verdict: verdict}
		}

		record, err := invoicing.NewPaymentRecord(invoiceID, amount, kind, date, req.Reference)
		if err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		state, err := invoicing.ValidateInvoice(inv.Total(), append(payments, *record), s.validation)
		if err != nil {
			return err
		}
		if err := inv.ApplyBillingState(state); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		result = RecordPaymentResult{
			Payment: ToPaymentResponse(record),
			Verdict: verdict,
			State:   state,
			Invoice: ToInvoiceResponse(inv, s.opts.Now()),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		var rejected *PaymentRejectedError
		if errors.As(err, &rejected) {
			s.opts.Metrics.RecordRejectedPayment(ctx, kind.String())
			logger.L(ctx).Warn("payment rejected",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("kind", kind.String()),
				zap.String("amount", req.Amount.String()),
				zap.Strings("warnings", rejected.Verdict.Warnings),
			)
		}
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, result.Payment.ID.String(),
		telemetry.SpanAttrBillingStatus, result.State.Status.String(),
	)
	s.opts.Metrics.RecordPayment(ctx, kind.String(), result.Payment.Currency)
	s.opts.Metrics.RecordReconciliation(ctx, result.State.Status.String(), result.State.Duplicates.DuplicateCount)
	logger.L(ctx).Info("payment recorded",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("kind", kind.String()),
		zap.String("billing_status", result.State.Status.String()),
	)
	return &result, nil
}

func (s *PaymentService) load(
	ctx context.Context,
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	invoiceID uuid.UUID,
) (*invoicing.Invoice, []invoicing.PaymentRecord, error) {
	inv, err := invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := paymentRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return inv, payments, nil
}
