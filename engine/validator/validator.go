// Package validator is the bridge between the raw, untyped argument maps
// that flow through engine/registry and the strongly-typed Go structs that
// function implementations actually want to work with.
//
// It composes two libraries: go-viper/mapstructure/v2 decodes the raw map
// into a struct while enforcing a key whitelist (ErrorUnused), and
// go-playground/validator/v10 enforces struct-tag constraints on the
// result.
package validator

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var instance = validator.New()

// Validate decodes raw into a new T, rejecting any key in raw that does not
// correspond to a declared field, then runs T's `validate` struct tags.
//
// When T declares no fields at all, Validate only accepts an empty raw map;
// anything else fails with the fixed message below.
func Validate[T any](raw map[string]any) (T, error) {
	var out T

	if numDeclaredFields(reflect.TypeOf(out)) == 0 {
		if len(raw) > 0 {
			return out, NewValidationError("Expected the object to validate to be empty.")
		}
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return out, NewValidationError(err.Error())
	}
	if err := decoder.Decode(raw); err != nil {
		return out, NewValidationError(decodeErrorMessages(err)...)
	}

	if err := instance.Struct(out); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return out, NewValidationError(err.Error())
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, formatFieldError(fe))
		}
		return out, NewValidationError(msgs...)
	}

	return out, nil
}

// numDeclaredFields reports how many exported fields t's underlying struct
// declares (0 for non-struct types, which Validate treats as "no fields").
func numDeclaredFields(t reflect.Type) int {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return 0
	}
	count := 0
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			count++
		}
	}
	return count
}

func decodeErrorMessages(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return msgs
	}
	return []string{err.Error()}
}

func formatFieldError(fe validator.FieldError) string {
	return fe.Namespace() + ": failed on the '" + fe.Tag() + "' constraint"
}
