package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one violated constraint. Loc is the path to the field starting with "body".
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is returned by Bind when request body does not satisfy the schema
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, strings.Join(f.Loc, ".")+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalizer is implemented by bodies which rewrite their fields before validation
type normalizer interface {
	Normalize()
}

// Bind decodes JSON body into dst and checks its constraints.
// Any failure is reported as *ValidationError.
func Bind(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &ValidationError{Fields: []FieldError{decodeFieldError(err)}}
	}

	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}

	return Validate(dst)
}

// Validate checks struct constraints of v
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, constraintFieldError(fe))
	}
	return &ValidationError{Fields: fields}
}

func constraintFieldError(fe validator.FieldError) FieldError {
	f := FieldError{Loc: []string{"body", fe.Field()}}
	switch fe.Tag() {
	case "required":
		f.Msg = "field required"
		f.Type = "value_error.missing"
	case "min":
		f.Msg = fmt.Sprintf("ensure this value has at least %s characters", fe.Param())
		f.Type = "value_error.any_str.min_length"
	case "max":
		f.Msg = fmt.Sprintf("ensure this value has at most %s characters", fe.Param())
		f.Type = "value_error.any_str.max_length"
	default:
		f.Msg = fmt.Sprintf("failed on %q constraint", fe.Tag())
		f.Type = "value_error"
	}
	return f
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return FieldError{
			Loc:  loc,
			Msg:  fmt.Sprintf("value is not a valid %s", typeErr.Type.Kind()),
			Type: "type_error",
		}
	}

	return FieldError{
		Loc:  []string{"body"},
		Msg:  "value is not a valid JSON object",
		Type: "value_error.jsondecode",
	}
}
