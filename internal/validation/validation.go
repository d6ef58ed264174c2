// Package validation turns struct tag validation failures into per-field
// errors that the HTTP layer renders as a validation_error payload.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a validation failure with one entry per rejected field.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// New returns an Errors value with a single field entry.
func New(field, code, message string) Errors {
	return Errors{{Field: field, Code: code, Message: message}}
}

// As extracts Errors from err.
func As(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// Rule is a custom tag registered on the validator.
type Rule struct {
	Tag  string
	Func validator.Func
}

var isbnChars = regexp.MustCompile(`^[0-9Xx-]+$`)

// Validator validates structs by their `validate` tags, reporting JSON field
// names.
type Validator struct {
	validate *validator.Validate
}

func NewValidator(rules ...Rule) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	rules = append([]Rule{{
		Tag: "isbn_chars",
		Func: func(fl validator.FieldLevel) bool {
			return isbnChars.MatchString(fl.Field().String())
		},
	}}, rules...)
	for _, rule := range rules {
		if err := validate.RegisterValidation(rule.Tag, rule.Func); err != nil {
			panic(fmt.Errorf("register validation %q: %w", rule.Tag, err))
		}
	}
	return &Validator{validate: validate}
}

// Struct validates v and returns Errors on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	case "datetime":
		return "must be a date in " + fe.Param() + " layout"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "isbn_chars":
		return "may contain only digits and dashes"
	case "email":
		return "must be a valid email address"
	case "timezone":
		return "must be an IANA time zone"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	default:
		return "is invalid"
	}
}
