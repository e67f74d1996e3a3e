package httpapi

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	return errors.As(err, out)
}

// jsonFieldName maps a struct field name to its snake_case JSON name.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// validationReason renders a validator tag as a short reason.
func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte", "min":
		return "must be at least " + fe.Param()
	default:
		return "invalid value"
	}
}
