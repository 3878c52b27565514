package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/volatiletech/null/v8"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	phoneTag   = "phone"
	phoneText  = "enter a valid phone number"
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-.]{4,30}$`)

	decimalTag   = "decimal"
	decimalText  = "enter a valid decimal number with at most 2 decimal places"
	decimalRegex = regexp.MustCompile(`^-?\d{1,16}(\.\d{1,2})?$`)

	oneOfTag  = "oneof"
	oneOfText = "{0} is not a valid choice"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// NewTranslator returns the English translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// validate the underlying values of nullable types
	validate.RegisterCustomTypeFunc(nullableValue,
		null.String{}, null.Int{}, null.Int16{}, null.Float64{}, null.Bool{}, null.Time{}, Date{})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	_ = validate.RegisterValidation(decimalTag, decimalValidation)
	RegisterCustomTranslation(validate, translator, decimalTag, decimalText)

	_ = validate.RegisterTranslation(
		oneOfTag, translator,
		func(t ut.Translator) error { return t.Add(oneOfTag, oneOfText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(oneOfTag, reflect.ValueOf(fe.Value()).String())
			return s
		},
	)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// nullableValue unwraps nullable types so that tags apply to the wrapped value.
// Invalid (null) values are reported as nil, which `omitempty` skips and `required` rejects.
func nullableValue(field reflect.Value) interface{} {
	switch v := field.Interface().(type) {
	case null.String:
		if v.Valid {
			return v.String
		}
	case null.Int:
		if v.Valid {
			return v.Int
		}
	case null.Int16:
		if v.Valid {
			return v.Int16
		}
	case null.Float64:
		if v.Valid {
			return v.Float64
		}
	case null.Bool:
		if v.Valid {
			return v.Bool
		}
	case null.Time:
		if v.Valid {
			return v.Time
		}
	case Date:
		if !v.IsZero() {
			return v.Time
		}
	}
	return nil
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func decimalValidation(fl validator.FieldLevel) bool {
	return decimalRegex.MatchString(fl.Field().String())
}

// IsValidPhone reports whether s looks like a phone number.
func IsValidPhone(s string) bool {
	return phoneRegex.MatchString(s)
}
