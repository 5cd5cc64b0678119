package dto

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate        = newValidator()
	roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool {
		return roleNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks a request struct and returns field -> message for every
// failing field, or nil when the request is valid.
func Validate(req interface{}) map[string]string {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "min":
		if isNumber(fe.Kind()) {
			return "Must be at least " + fe.Param() + "."
		}
		return "Must be at least " + fe.Param() + " characters."
	case "max":
		if isNumber(fe.Kind()) {
			return "Must be at most " + fe.Param() + "."
		}
		return "Must be at most " + fe.Param() + " characters."
	case "len":
		return "Must be exactly " + fe.Param() + " characters."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "numeric":
		return "Must contain only digits."
	case "alphanum_underscore":
		return "Use lowercase letters, digits and underscores."
	default:
		return "Is invalid."
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
