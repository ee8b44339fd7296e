package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	caseNoRegex    = regexp.MustCompile(`^[A-Z]{2,10}[0-9]{6,}$`)
	medallionRegex = regexp.MustCompile(`^[0-9][A-Z][0-9]{2}$|^[0-9][A-Z]{2}[0-9]{2}$`)
	controlRegex   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// NewValidator returns a validator that reports json field names and knows
// the case_no and medallion_number tags
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("case_no", func(fl validator.FieldLevel) bool {
		return caseNoRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("medallion_number", func(fl validator.FieldLevel) bool {
		return medallionRegex.MatchString(fl.Field().String())
	})

	return v
}

// ValidateCaseNumber checks the PREFIX000000 shape of a case number
func ValidateCaseNumber(caseNo string) error {
	if !caseNoRegex.MatchString(caseNo) {
		return fmt.Errorf("invalid case number format: %s", caseNo)
	}
	return nil
}

// FormatValidationError flattens validator errors into one line
func FormatValidationError(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
