package core

// validation.go checks a flattened submission against the fields its form
// declares before any delivery is queued.
//
// Every problem is reported at once so a form can mark all bad fields.
// Fields the form does not declare are never rejected.

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors is returned by Submit when fields fail validation.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// ValidateRecord checks rec against the fields of form. A field flattened
// into several columns ("Topics -- 0", "Topics -- 1") counts as filled when
// any of them is non-empty; type checks only apply to single values.
func ValidateRecord(form connector.Form, rec sheet.Record, separator string) ValidationErrors {
	var errs ValidationErrors
	for _, field := range form.Fields {
		col := field.Column()
		value, single := rec.Get(col)

		if !filled(rec, col, separator) {
			if field.Required {
				errs = append(errs, ValidationError{Field: col, Message: "required field is empty"})
			}
			continue
		}
		if !single || value == "" {
			continue
		}
		if err := validateValue(field.Type, value); err != nil {
			errs = append(errs, ValidationError{Field: col, Value: value, Message: err.Error()})
		}
	}
	return errs
}

func filled(rec sheet.Record, col, separator string) bool {
	prefix := col + separator
	for _, f := range rec {
		if f.Value == "" {
			continue
		}
		if f.Name == col || (separator != "" && strings.HasPrefix(f.Name, prefix)) {
			return true
		}
	}
	return false
}

func validateValue(t connector.FieldType, raw string) error {
	switch t {
	case connector.FieldEmail:
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != strings.TrimSpace(raw) {
			return errors.New("invalid email address")
		}
	case connector.FieldNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			return errors.New("invalid number")
		}
	}
	return nil
}
