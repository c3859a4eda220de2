// Package validation runs struct-tag validation on request DTOs and reports
// failures as validation_error domain errors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "organograma/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalizer is implemented by DTOs that trim or canonicalize input before
// validation.
type Normalizer interface {
	Normalize()
}

// Struct normalizes v when it supports it, then validates its tags.
func Struct(v any) error {
	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	return dErrors.New(dErrors.CodeValidation, describe(verrs))
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "uuid":
			parts = append(parts, field+" must be a valid id")
		case "url":
			parts = append(parts, field+" must be a valid url")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
