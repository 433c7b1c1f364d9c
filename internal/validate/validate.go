// Package validate wraps go-playground/validator with JSON field names and
// English messages.
package validate

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

// Error lists the offending fields by JSON name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// Add records a message for field, keeping the first one.
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil returns e when it holds at least one field.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func instance() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterTranslation("required", translator,
			func(t ut.Translator) error { return t.Add("required", requiredText, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T("required", fe.Field())
				return s
			},
		)
	})
	return validate, translator
}

// Struct validates v and converts failures into *Error.
func Struct(v any) error {
	return Into(&Error{}, v)
}

// Into validates v and adds any failures to into. It returns into when it
// holds at least one field.
func Into(into *Error, v any) error {
	validate, translator := instance()
	err := validate.Struct(v)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			into.Add(fe.Field(), fe.Translate(translator))
		}
	} else if err != nil {
		return err
	}
	return into.OrNil()
}
