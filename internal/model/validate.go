package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/johann/primevista/internal/errors"
)

// Normalizer is implemented by rows that clean up their own input before validation.
type Normalizer interface {
	Normalize()
}

// Validator checks rows against their `validate` struct tags and reports
// failures keyed by column name, which is also the form field name.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("db"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Check normalises row when it implements Normalizer, then validates it.
// Failures are returned as a validation AppError with one message per field.
func (val *Validator) Check(row any) error {
	if n, ok := row.(Normalizer); ok {
		n.Normalize()
	}

	err := val.v.Struct(row)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", row, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return apperrors.ValidationFields(fields)
}

func message(fe validator.FieldError) string {
	label := Label(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters.", label, fe.Param())
	case "email":
		return "Enter a valid email address."
	case "http_url":
		return label + " must be an http:// or https:// URL."
	default:
		return label + " is invalid."
	}
}

// Label turns a column name such as "full_name" into "Full name".
func Label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
