package validation

import (
	"fmt"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
)

type ValidatorFunc func(interface{}) *internal.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *internal.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = v == ""
		case int64:
			missing = v == 0
		case int:
			missing = v == 0
		case *string:
			missing = v == nil || *v == ""
		case time.Time:
			missing = v.IsZero()
		}
		if missing {
			return internal.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), internal.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinInt(min int64, code internal.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *internal.AppError {
		if v, ok := asInt64(value); ok && v < min {
			return internal.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be at least %d", fv.FieldName, min), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxInt(max int64, code internal.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *internal.AppError {
		if v, ok := asInt64(value); ok && v > max {
			return internal.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must not exceed %d", fv.FieldName, max), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *internal.AppError {
		if v, ok := value.(string); ok && len(v) > max {
			message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
			return internal.NewValidationFieldError(fv.FieldName, message, internal.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

// After requires a time strictly later than ref, compared by calendar day.
func (fv *FieldValidator) After(ref time.Time, refName string) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *internal.AppError {
		if v, ok := value.(time.Time); ok && !v.IsZero() && !ref.IsZero() && !truncateDay(v).After(truncateDay(ref)) {
			message := fmt.Sprintf("%s must be after %s", fv.FieldName, refName)
			return internal.NewValidationFieldError(fv.FieldName, message, internal.ErrCodeInvalidDate)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Positive(code internal.ErrorCode) *FieldValidator {
	return fv.MinInt(1, code)
}

func (fv *FieldValidator) Custom(validator func(interface{}) *internal.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

func (v *ValidationBuilder) Validate() *internal.AppError {
	var validationErrors []internal.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(internal.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
				continue
			}
			validationErrors = append(validationErrors, internal.ValidationError{
				Field:   field.FieldName,
				Message: appErr.Message,
				Code:    string(appErr.Code),
			})
		}
	}

	if len(validationErrors) > 0 {
		return internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

// MaxPaymentPaise caps a single gateway charge or refund (₹10,00,000).
const MaxPaymentPaise int64 = 100_000_000

func ValidatePaymentAmount(field string, paise int64) *internal.AppError {
	validator := NewValidator()
	validator.Field(field, paise).
		Required().
		Positive(internal.ErrCodeInvalidAmount).
		MaxInt(MaxPaymentPaise, internal.ErrCodeAmountTooHigh)
	return validator.Validate()
}

// MaxStayMonths bounds the length of a single booking.
const MaxStayMonths = 36

// ValidateStay checks a parsed check-in date and stay length.
func ValidateStay(checkIn time.Time, durationMonths int) *internal.AppError {
	validator := NewValidator()
	validator.Field("checkInDate", checkIn).Required()
	validator.Field("durationMonths", durationMonths).
		Required().
		Positive(internal.ErrCodeValidationFailed).
		MaxInt(MaxStayMonths, internal.ErrCodeValidationFailed)
	return validator.Validate()
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
