package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)

func Email(email string) error {
	const maxlength = 64

	if len(email) > maxlength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("bad_format")
	}

	return nil
}

// Password enforces the length rules only; bcrypt ignores anything past 72 bytes.
func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 72 {
		return fmt.Errorf("long_password")
	}
	return nil
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", notBlank)
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct validates form structs by their validate tags. The first failing
// field becomes a ValidationError carrying message, or a generic reason when
// message is empty.
func Struct(form any, message string) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	first := validateErrs[0]
	if message == "" {
		message = reason(first)
	}
	return apperr.Validation(first.Field(), message)
}

// Fields lists every failing field and its tag, for forms that show errors
// next to each input.
func Fields(form any) map[string]string {
	formErrors := make(map[string]string)

	var validateErrs validator.ValidationErrors
	if errors.As(validate.Struct(form), &validateErrs) {
		for _, e := range validateErrs {
			formErrors[e.Field()] = e.Tag()
		}
	}
	return formErrors
}

func reason(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "Please fill in all fields"
	case "max":
		return fmt.Sprintf("%s is too long", e.Field())
	case "min":
		return fmt.Sprintf("%s is too short", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}
