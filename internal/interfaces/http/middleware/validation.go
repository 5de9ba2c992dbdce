package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

// Custom validation tags registered by SetupValidator.
const (
	TagDecimalPositive    = "decimal_gt0"
	TagDecimalNonNegative = "decimal_gte0"
	TagDecimalScale2      = "decimal_scale2"
	TagDecimal            = "decimal"
)

var setupOnce sync.Once

// SetupValidator configures gin's validator: JSON tag names in error
// details, decimal.Decimal fields validated by their string form, and the
// decimal_* tags. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		RegisterValidations(v)
	})
}

// RegisterValidations installs the custom tags on v.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation(TagDecimal, func(fl validator.FieldLevel) bool {
		_, ok := parseDecimalField(fl)
		return ok
	})
	_ = v.RegisterValidation(TagDecimalPositive, func(fl validator.FieldLevel) bool {
		d, ok := parseDecimalField(fl)
		return ok && d.IsPositive()
	})
	_ = v.RegisterValidation(TagDecimalNonNegative, func(fl validator.FieldLevel) bool {
		d, ok := parseDecimalField(fl)
		return ok && !d.IsNegative()
	})
	_ = v.RegisterValidation(TagDecimalScale2, func(fl validator.FieldLevel) bool {
		d, ok := parseDecimalField(fl)
		return ok && d.Equal(d.Round(2))
	})
}

func parseDecimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError writes a 400 response for a binding failure. Field
// errors are listed; malformed JSON is reported as ERR_INVALID_JSON.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidJSON, "Malformed request: "+err.Error(), requestID))
		return
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "iso4217":
		return "Must be an ISO 4217 currency code"
	case "datetime":
		return "Must match layout " + e.Param()
	case "gtfield":
		return "Must be after " + e.Param()
	case TagDecimal:
		return "Must be a decimal number"
	case TagDecimalPositive:
		return "Must be a decimal greater than 0"
	case TagDecimalNonNegative:
		return "Must be a decimal greater than or equal to 0"
	case TagDecimalScale2:
		return "Must have at most 2 decimal places"
	default:
		return "Invalid value"
	}
}
