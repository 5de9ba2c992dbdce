// Package dto holds the HTTP response envelope and the mapping from domain
// error codes to API error codes and statuses.
package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	// ErrCodePreconditionFailed is used when an engine precondition is violated
	// (negative amount, currency mismatch, inverted interval)
	ErrCodePreconditionFailed = "ERR_PRECONDITION_FAILED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeLocked is used when another writer holds the invoice lock
	ErrCodeLocked = "ERR_LOCKED"
	// ErrCodeIdempotencyInFlight is used when a request with the same
	// Idempotency-Key has not finished yet
	ErrCodeIdempotencyInFlight = "ERR_IDEMPOTENCY_IN_FLIGHT"
)

// Business rule error codes
const (
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeBusinessRule      = "ERR_BUSINESS_RULE"
	ErrCodeTimerRunning      = "ERR_TIMER_ALREADY_RUNNING"
	ErrCodeInvoiceNotPayable = "ERR_INVOICE_NOT_PAYABLE"
	ErrCodePaymentRejected   = "ERR_PAYMENT_REJECTED"
	ErrCodeRefundExceedsPaid = "ERR_REFUND_EXCEEDS_PAID"
	ErrCodeNoBillableEntries = "ERR_NO_BILLABLE_ENTRIES"
	ErrCodeAlreadyInvoiced   = "ERR_ALREADY_INVOICED"
	ErrCodeEntryNotBillable  = "ERR_NOT_BILLABLE"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodePreconditionFailed: http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeLocked:              http.StatusConflict,
	ErrCodeIdempotencyInFlight: http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeTimerRunning:      http.StatusConflict,
	ErrCodeInvoiceNotPayable: http.StatusUnprocessableEntity,
	ErrCodePaymentRejected:   http.StatusUnprocessableEntity,
	ErrCodeRefundExceedsPaid: http.StatusUnprocessableEntity,
	ErrCodeNoBillableEntries: http.StatusUnprocessableEntity,
	ErrCodeAlreadyInvoiced:   http.StatusUnprocessableEntity,
	ErrCodeEntryNotBillable:  http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Codes without an entry are treated as input errors when they come from
// the domain (INVALID_*), and as internal errors otherwise.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if isInvalidFieldCode(code) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"LOCK_NOT_ACQUIRED":     ErrCodeLocked,
	"PRECONDITION_FAILED":   ErrCodePreconditionFailed,
	"TIMER_ALREADY_RUNNING": ErrCodeTimerRunning,
	"INVOICE_NOT_PAYABLE":   ErrCodeInvoiceNotPayable,
	"PAYMENT_REJECTED":      ErrCodePaymentRejected,
	"REFUND_EXCEEDS_PAID":   ErrCodeRefundExceedsPaid,
	"NO_BILLABLE_ENTRIES":   ErrCodeNoBillableEntries,
	"ALREADY_INVOICED":      ErrCodeAlreadyInvoiced,
	"NOT_BILLABLE":          ErrCodeEntryNotBillable,
	"VALIDATION_ERROR":      ErrCodeValidation,
	"BAD_REQUEST":           ErrCodeBadRequest,
	"INTERNAL_ERROR":        ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the ERR_ format.
// Field level INVALID_* codes become ERR_INVALID_*; codes already in the API
// format pass through unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	if len(code) > 8 && code[:8] == "INVALID_" {
		return "ERR_" + code
	}
	return code
}

func isInvalidFieldCode(code string) bool {
	return len(code) > 12 && code[:12] == "ERR_INVALID_"
}
