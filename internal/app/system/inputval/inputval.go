// Package inputval validates dashboard form input and configuration
// values using waffle/pantry/validate.
//
// Define an input struct with validate tags, fill it from form values,
// and call Validate:
//
//	type RangeInput struct {
//	    From string `validate:"required,isodate" label:"Start date"`
//	    To   string `validate:"required,isodate" label:"End date"`
//	}
//
//	if res := inputval.Validate(in); res.HasErrors() {
//	    renderWithError(w, r, res.First())
//	    return
//	}
package inputval

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/waffle/pantry/validate"
)

// Result holds validation results with user-friendly messages.
type Result struct {
	Errors []FieldError
}

// FieldError represents a validation error for a single field.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (r *Result) First() string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Message
	}
	return ""
}

// All returns all error messages joined with "; ".
func (r *Result) All() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// customValidator is a singleton validator with custom rules registered.
var (
	customValidator *validate.Validator
	validatorOnce   sync.Once
)

// getValidator returns the singleton validator with custom rules.
func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		customValidator = validate.New(validate.WithStopOnFirstError())

		// countrycode: two ASCII letters, any case
		customValidator.RegisterRuleFunc("countrycode", func(value any) bool {
			if s, ok := value.(string); ok {
				return IsValidCountryCode(s)
			}
			return false
		}, "countrycode")

		// isodate: YYYY-MM-DD calendar date
		customValidator.RegisterRuleFunc("isodate", func(value any) bool {
			if s, ok := value.(string); ok {
				return IsValidISODate(s)
			}
			return false
		}, "isodate")

		// httpurl: validates that string is a valid http/https URL
		customValidator.RegisterRuleFunc("httpurl", func(value any) bool {
			if s, ok := value.(string); ok {
				return IsValidHTTPURL(s)
			}
			return false
		}, "httpurl")
	})
	return customValidator
}

// Validate validates a struct and returns a Result with user-friendly errors.
// The struct should have `validate` tags for rules and optional `label` tags
// for user-friendly field names.
//
// Besides the pantry/validate rules (required, min, max, oneof), this
// package registers:
//   - countrycode: two-letter country code
//   - isodate: YYYY-MM-DD date
//   - httpurl: http:// or https:// URL
func Validate(s any) *Result {
	result := &Result{}

	v := getValidator()
	err := v.Struct(s)
	if err == nil {
		return result
	}

	// Get field labels from struct tags
	labels := getFieldLabels(s)

	if errs, ok := err.(validate.Errors); ok {
		for _, e := range errs {
			label := labels[e.Field]
			if label == "" {
				label = e.Field
			}

			msg := formatMessage(label, e.Rule, e.Param)
			result.Errors = append(result.Errors, FieldError{
				Field:   e.Field,
				Label:   label,
				Message: msg,
			})
		}
	}

	return result
}

// getFieldLabels extracts the "label" tag from struct fields.
func getFieldLabels(s any) map[string]string {
	labels := make(map[string]string)

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return labels
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// Get the field name (use json tag if available)
		fieldName := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" && parts[0] != "-" {
				fieldName = parts[0]
			}
		}

		// Get the label
		if label := field.Tag.Get("label"); label != "" {
			labels[fieldName] = label
		}
	}

	return labels
}

// formatMessage creates a user-friendly message for a validation rule.
func formatMessage(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	case "countrycode":
		return label + " must be a two-letter country code."
	case "isodate":
		return label + " must be a date in YYYY-MM-DD form."
	case "httpurl":
		return label + " must be a valid URL starting with http:// or https://."
	default:
		return label + " is invalid."
	}
}

// IsValidCountryCode reports whether s is two ASCII letters.
func IsValidCountryCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// IsValidISODate reports whether s parses as a YYYY-MM-DD date.
func IsValidISODate(s string) bool {
	_, err := civil.ParseDate(strings.TrimSpace(s))
	return err == nil
}

// IsValidHTTPURL checks if the given string is a valid http:// or https:// URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
