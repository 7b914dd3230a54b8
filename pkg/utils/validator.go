package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidatorInit is returned when a custom rule cannot be registered
var ErrValidatorInit = errors.New("validator initialization failed")

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error

	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// FieldError describes the first struct field that failed validation
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("'%s' %s", e.Field, e.Message)
}

func initValidators() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match the wire payloads
	vld.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := vld.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return value.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to register 'positive_decimal': %w", ErrValidatorInit, err)
	}

	return vld, nil
}

// GetValidator returns the shared validator instance
func GetValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidators()
	})
	return validate, errValidate
}

// ValidateStruct validates payload against its `validate` tags.
// The first failing field is returned as a *FieldError.
func ValidateStruct(payload interface{}) error {
	vld, err := GetValidator()
	if err != nil {
		return err
	}

	if err := vld.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return toFieldError(verrs[0])
		}
		return err
	}
	return nil
}

func toFieldError(fe validator.FieldError) *FieldError {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "gte":
		msg = "must be at least " + fe.Param()
	case "min":
		msg = "must have at least " + fe.Param() + " element(s)"
	case "positive_decimal":
		msg = "must be a positive number"
	default:
		msg = "failed on the '" + fe.Tag() + "' rule"
	}
	return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: msg}
}

// SanitizeString removes control characters from free text
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
