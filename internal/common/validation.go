package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxSourceBytes bounds submitted source code.
const MaxSourceBytes = 64 * 1024

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxSourceBytes
	})
	_ = validate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "Easy", "Medium", "Hard":
			return true
		}
		return false
	})
}

// Validate checks struct tags and returns an ErrValidation wrapping a
// readable list of the failing fields.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, ErrValidation)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), ErrValidation)
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s exceeds %d bytes", field, MaxSourceBytes)
	case "difficulty":
		return field + " must be Easy, Medium or Hard"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
