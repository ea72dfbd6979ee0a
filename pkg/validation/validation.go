// Package validation provides struct validation for FlowSim configuration
// documents with go-playground/validator integration.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance with FlowSim's custom rules
// registered.
var Validate *validator.Validate

// identPattern matches node, edge, port, and parameter identifiers: a letter
// followed by letters, digits, underscore, or hyphen.
var identPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

func init() {
	Validate = validator.New()

	// Must-register failures are programming errors.
	if err := Validate.RegisterValidation("ident", validateIdent); err != nil {
		panic(fmt.Sprintf("validation: register ident: %v", err))
	}

	// Use JSON tag names in error messages.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

func validateIdent(fl validator.FieldLevel) bool {
	return identPattern.MatchString(fl.Field().String())
}

// Error represents a single field validation failure.
type Error struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("validation error on field %q: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Errors aggregates validation failures.
type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Struct validates a struct using its validate tags and returns Errors on
// failure.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var out Errors
	for _, fe := range verrs {
		out = append(out, Error{
			Field:   fe.Namespace(),
			Value:   fe.Value(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ident":
		return "must be a valid identifier (letter followed by letters, digits, '_' or '-')"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s elements", fe.Param())
	case "dive":
		return "contains invalid elements"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
