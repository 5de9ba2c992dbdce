package invoicing

import (
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
)

// ValidationConfig tunes invoice classification. It is passed explicitly to
// every reconciliation call so different tolerances never interfere.
type ValidationConfig struct {
	// ThresholdAmount is the absolute balance, in invoice currency units,
	// still treated as settled.
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
	// StrictMode turns projected overbilling into a rejection.
	StrictMode bool `json:"strict_mode"`
}

// ValidationOption is a functional option for NewValidationConfig
type ValidationOption func(*ValidationConfig)

// WithThreshold overrides the tolerance
func WithThreshold(threshold decimal.Decimal) ValidationOption {
	return func(c *ValidationConfig) {
		c.ThresholdAmount = threshold
	}
}

// WithStrictMode enables or disables strict enforcement
func WithStrictMode(strict bool) ValidationOption {
	return func(c *ValidationConfig) {
		c.StrictMode = strict
	}
}

// DefaultValidationConfig returns a 1.50 tolerance in advisory mode
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		ThresholdAmount: decimal.NewFromFloat(1.50),
		StrictMode:      false,
	}
}

// NewValidationConfig applies options over the defaults and validates the result
func NewValidationConfig(opts ...ValidationOption) (ValidationConfig, error) {
	cfg := DefaultValidationConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return ValidationConfig{}, err
	}
	return cfg, nil
}

// Validate rejects a negative threshold
func (c ValidationConfig) Validate() error {
	if c.ThresholdAmount.IsNegative() {
		return shared.NewPreconditionError("threshold amount cannot be negative")
	}
	return nil
}
