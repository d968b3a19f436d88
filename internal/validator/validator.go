// Package validator wraps go-playground/validator with JSON field names, English
// messages and the participant identity rules.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"live-quiz-service/internal/domain"
)

var (
	rollNoPattern = regexp.MustCompile(`^\d{3}[A-Z]{3}\d{3}$`)
	mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

var (
	once     sync.Once
	validate *govalidator.Validate
	trans    ut.Translator
)

// Setup builds the shared validator. It is safe to call more than once.
func Setup() {
	once.Do(func() {
		v := govalidator.New(govalidator.WithRequiredStructEnabled())
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerPattern(v, "rollno", rollNoPattern, "{0} must look like 235UCS001")
		registerPattern(v, "mobile", mobilePattern, "{0} must be a 10 digit mobile number starting with 6-9")
		validate = v
	})
}

func registerPattern(v *govalidator.Validate, tag string, pattern *regexp.Regexp, message string) {
	_ = v.RegisterValidation(tag, func(fl govalidator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, err := ut.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// Struct validates s and returns a *domain.ValidationError listing each failing field.
func Struct(s interface{}) error {
	Setup()
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	return &domain.ValidationError{Fields: TranslateErrors(err)}
}

// TranslateErrors takes a validation error and returns a map of field name to a
// human-readable message. Other errors are reported under "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// RollNo reports whether s is a well formed roll number.
func RollNo(s string) bool {
	return rollNoPattern.MatchString(s)
}

// Mobile reports whether s is a well formed mobile number.
func Mobile(s string) bool {
	return mobilePattern.MatchString(s)
}
