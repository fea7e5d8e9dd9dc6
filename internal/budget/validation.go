package budget

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldError describes a single rejected form field.
type FieldError struct {
	Field string
	Tag   string
}

// ValidationError lists the rejected fields of an input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, strings.ToLower(f.Field)+" "+f.Tag)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (s *Service) validateInput(in any, amount decimal.Decimal) error {
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			out := &ValidationError{}
			for _, fe := range fieldErrs {
				out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag()})
			}
			return out
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ValidateAmount(amount)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
