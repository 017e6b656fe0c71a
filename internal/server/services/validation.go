package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of in and converts failures into a
// common.ValidationError keyed by JSON field name.
func validateStruct(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: validate: %w", common.ErrorInternal, err)
	}

	ve := &common.ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required":
		return "is required"
	case fe.Tag() == "email":
		return "Please enter a valid email address"
	case fe.Field() == "password" && fe.Tag() == "min":
		return "password length must be greater than 5"
	case fe.Field() == "password" && fe.Tag() == "max":
		return "password is too long"
	case fe.Field() == "vip_level":
		return "must be between 0 and 10"
	case fe.Tag() == "max":
		return "is too long"
	default:
		return "failed on " + fe.Tag()
	}
}
