package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SnippetIDTag validates snippet identifiers: 1-64 letters, digits, '-' or '_'.
const SnippetIDTag = "snippetid"

var snippetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError is one failed rule, reported under the field's JSON name.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationErrors collects every failed rule of one validation call.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	var b strings.Builder
	for i, failure := range v {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(failure.Field)
		b.WriteString(" failed on ")
		b.WriteString(failure.Tag)
		if failure.Param != "" {
			b.WriteByte('=')
			b.WriteString(failure.Param)
		}
	}
	return b.String()
}

// Fields returns the failing field names in report order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for _, failure := range v {
		fields = append(fields, failure.Field)
	}
	return fields
}

// ValidateStruct runs the struct's validate tags.
func ValidateStruct(s any) error {
	return convert(engine().Struct(s))
}

// ValidateVar checks a single value against tag, e.g. ValidateVar(id, SnippetIDTag).
func ValidateVar(value any, tag string) error {
	return convert(engine().Var(value, tag))
}

// RegisterValidation adds a custom rule to the shared engine.
func RegisterValidation(tag string, fn validator.Func) error {
	return engine().RegisterValidation(tag, fn)
}

func convert(err error) error {
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	failures := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return failures
}

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		_ = validate.RegisterValidation(SnippetIDTag, func(fl validator.FieldLevel) bool {
			return snippetIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
