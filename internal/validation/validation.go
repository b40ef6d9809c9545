// Package validation wraps go-playground/validator with JSON field names and
// English messages, and converts failures into apperr validation errors.
package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"learncenter/internal/apperr"
)

var (
	phoneTag   = "phone"
	phoneText  = "{0} must be a phone number"
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// Validator validates structs tagged with `validate:"..."`.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New returns a ready Validator.
func New() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(NormalizePhone(fl.Field().String()))
	})
	registerTranslation(validate, translator, phoneTag, phoneText, false)
	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &Validator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s. Failures come back as an apperr validation error with
// one FieldError per offending field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Error: fe.Translate(v.translator)})
	}
	return apperr.ValidationFields("invalid input", fields...)
}

var phoneStrip = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// NormalizePhone strips formatting characters from a phone number.
func NormalizePhone(raw string) string {
	return phoneStrip.Replace(strings.TrimSpace(raw))
}
