package crm

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventuais/eventuais/core"
)

// ValidateFieldValue checks value against the type of field. An empty value is only rejected for required fields.
func ValidateFieldValue(field CustomField, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		if field.IsRequired {
			return core.NewFieldError("value", "this field is required")
		}
		return nil
	}

	invalid := func(msg string) error { return core.NewFieldError("value", msg) }

	switch field.FieldType {
	case FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return invalid("enter a number")
		}
	case FieldDate:
		if _, err := time.Parse(core.DateLayout, value); err != nil {
			return invalid("enter a valid date (YYYY-MM-DD)")
		}
	case FieldDatetime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return invalid("enter a valid date time (RFC 3339)")
		}
	case FieldBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return invalid("enter true or false")
		}
	case FieldURL:
		u, err := url.ParseRequestURI(value)
		if err != nil || u.Host == "" || !(u.Scheme == "http" || u.Scheme == "https") {
			return invalid("enter a valid URL")
		}
	case FieldEmail:
		if addr, err := mail.ParseAddress(value); err != nil || addr.Address != value {
			return invalid("enter a valid email address")
		}
	case FieldPhone:
		if !core.IsValidPhone(value) {
			return invalid("enter a valid phone number")
		}
	case FieldSelect:
		if !contains(field.ChoiceList(), value) {
			return invalid(value + " is not a valid choice")
		}
	case FieldMultiselect:
		choices := field.ChoiceList()
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); !contains(choices, v) {
				return invalid(v + " is not a valid choice")
			}
		}
	}
	return nil
}

// validateCustomField checks the choices of select fields.
func validateCustomField(cf CustomField) error {
	if (cf.FieldType == FieldSelect || cf.FieldType == FieldMultiselect) && len(cf.ChoiceList()) == 0 {
		return core.NewFieldError("choices", "choices are required for select fields")
	}
	if cf.DefaultValue != "" {
		dflt := cf
		dflt.IsRequired = false
		if err := ValidateFieldValue(dflt, cf.DefaultValue); err != nil {
			return core.NewFieldError("default_value", "default value does not match the field type")
		}
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func itoa(i int) string { return strconv.Itoa(i) }
