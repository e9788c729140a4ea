package core

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)

	hexColorTag   = "hexcolor_"
	hexColorText  = "must be a color in the #rrggbb format"
	hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

	timezoneTag  = "tz"
	timezoneText = "unknown timezone"

	timeOfDayTag  = "hhmm"
	timeOfDayText = "must be a time of day in the HH:MM format"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

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

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(hexColorTag, hexColorValidation)
	RegisterCustomTranslation(validate, translator, hexColorTag, hexColorText)

	_ = validate.RegisterValidation(timezoneTag, timezoneValidation)
	RegisterCustomTranslation(validate, translator, timezoneTag, timezoneText)

	_ = validate.RegisterValidation(timeOfDayTag, timeOfDayValidation)
	RegisterCustomTranslation(validate, translator, timeOfDayTag, timeOfDayText)

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

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func hexColorValidation(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

// timezoneValidation accepts any IANA timezone name known to the host.
func timezoneValidation(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || strings.EqualFold(name, "local") {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

func timeOfDayValidation(fl validator.FieldLevel) bool {
	_, err := ParseTimeOfDay(fl.Field().String())
	return err == nil
}

// ParseTimeOfDay parses "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
