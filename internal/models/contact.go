package models

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	if err := v.RegisterValidation("phone", validPhone); err != nil {
		panic(err)
	}
	return v
}

// validPhone accepts digits with common separators and an optional leading
// "+", e.g. "+1 (555) 010-0199".
func validPhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 3 && digits <= 15
}

// EmergencyContact is the person to call from the dashboard's SOS action.
type EmergencyContact struct {
	Name  string `json:"name" validate:"max=100"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

// Callable reports whether the contact has a phone number to dial.
func (c EmergencyContact) Callable() bool {
	return strings.TrimSpace(c.Phone) != ""
}

func (c EmergencyContact) Validate() error {
	if err := structError("emergency_contact", validate.Struct(c)); err != nil {
		return err
	}
	if c.Name != "" && c.Phone == "" && c.Email == "" {
		return invalid("emergency_contact", "needs a phone number or email")
	}
	return nil
}

// Profile identifies the person the medicines are for.
type Profile struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (p Profile) Validate() error {
	return structError("profile", validate.Struct(p))
}

// structError turns the first validator failure into a ValidationError.
func structError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	field := prefix + "." + fe.Field()
	switch fe.Tag() {
	case "email":
		return invalid(field, "is not a valid email address: %q", fe.Value())
	case "phone":
		return invalid(field, "is not a valid phone number: %q", fe.Value())
	case "max":
		return invalid(field, "must be at most %s characters", fe.Param())
	default:
		return invalid(field, "failed %s check", fe.Tag())
	}
}
