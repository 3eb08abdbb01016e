package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("ifname", validateIfName); err != nil {
		panic(err)
	}
}

// validateIfName accepts Linux interface names: 1-15 bytes, no '/' or whitespace.
func validateIfName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "" && len(name) <= 15 && !strings.ContainsAny(name, "/ \t\r\n")
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "ifname":
		return "must be a valid interface name (at most 15 bytes, no '/' or whitespace)"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// validateStruct runs tag validation and reports the first failing field.
func validateStruct(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), validationMessage(fe)))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}
