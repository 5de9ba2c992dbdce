package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/timetracking"
)

// PaymentService is the part of the payment service the API uses.
type PaymentService interface {
	GetBillingState(ctx context.Context, invoiceID uuid.UUID) (*invoicing.InvoiceBillingState, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]appinvoicing.PaymentResponse, error)
	PreviewPayment(ctx context.Context, invoiceID uuid.UUID, kind invoicing.PaymentKind, req appinvoicing.PaymentRequest) (*invoicing.ProposedPaymentVerdict, error)
	RecordPayment(ctx context.Context, invoiceID uuid.UUID, req appinvoicing.PaymentRequest) (*appinvoicing.RecordPaymentResult, error)
	RecordRefund(ctx context.Context, invoiceID uuid.UUID, req appinvoicing.PaymentRequest) (*appinvoicing.RecordPaymentResult, error)
}

// PaymentHandler serves reconciliation, payments and refunds.
type PaymentHandler struct {
	BaseHandler
	service  PaymentService
	calendar timetracking.Calendar
}

// NewPaymentHandler creates a PaymentHandler reading dates in cal.
func NewPaymentHandler(service PaymentService, cal timetracking.Calendar) *PaymentHandler {
	return &PaymentHandler{service: service, calendar: cal}
}

// PaymentRequest is the body of POST /invoices/:id/payments and /refunds.
// The amount is in the invoice currency.
type PaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount" binding:"required,decimal_gte0,decimal_scale2"`
	Date      string           `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Reference string           `json:"reference" binding:"max=100"`
}

// PreviewPaymentRequest is the body of POST /invoices/:id/payments/preview.
// Kind defaults to PAYMENT.
type PreviewPaymentRequest struct {
	PaymentRequest
	Kind string `json:"kind" binding:"omitempty,oneof=PAYMENT REFUND payment refund"`
}

// BillingState handles GET /api/v1/invoices/:id/billing-state
func (h *PaymentHandler) BillingState(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	state, err := h.service.GetBillingState(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}

// List handles GET /api/v1/invoices/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Preview handles POST /api/v1/invoices/:id/payments/preview. The verdict
// is returned with 200 whether or not the record would be accepted.
func (h *PaymentHandler) Preview(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req PreviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	kind := invoicing.PaymentKindPayment
	if req.Kind != "" {
		parsed, err := invoicing.ParsePaymentKind(req.Kind)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		kind = parsed
	}
	appReq, ok := h.toAppRequest(c, req.PaymentRequest)
	if !ok {
		return
	}

	verdict, err := h.service.PreviewPayment(c.Request.Context(), invoiceID, kind, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, verdict)
}

// RecordPayment handles POST /api/v1/invoices/:id/payments
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	h.record(c, h.service.RecordPayment)
}

// RecordRefund handles POST /api/v1/invoices/:id/refunds
func (h *PaymentHandler) RecordRefund(c *gin.Context) {
	h.record(c, h.service.RecordRefund)
}

type recordFunc func(ctx context.Context, invoiceID uuid.UUID, req appinvoicing.PaymentRequest) (*appinvoicing.RecordPaymentResult, error)

func (h *PaymentHandler) record(c *gin.Context, book recordFunc) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	appReq, ok := h.toAppRequest(c, req)
	if !ok {
		return
	}

	result, err := book(c.Request.Context(), invoiceID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

func (h *PaymentHandler) toAppRequest(c *gin.Context, req PaymentRequest) (appinvoicing.PaymentRequest, bool) {
	date, err := parseOptionalDate(h.calendar, req.Date)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return appinvoicing.PaymentRequest{}, false
	}
	return appinvoicing.PaymentRequest{
		Amount:    *req.Amount,
		Date:      date,
		Reference: req.Reference,
	}, true
}
