package datastore

import (
	"reflect"
	"strings"
	"time"
	"unicode"
)

// RowOptions configures StructToRow.
type RowOptions struct {
	OmitFields       map[string]bool
	KeyOverrides     map[string]string
	JoinStringSlices bool
}

// StructToRow converts a struct into a row keyed by snake_case field names.
// Nil pointers become NULL and times are written as RFC 3339 strings.
func StructToRow[T any](value T, opts RowOptions) map[string]any {
	result := make(map[string]any)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return result
		}
		v = v.Elem()
	}

	appendStructFields(v, result, opts)
	return result
}

func appendStructFields(v reflect.Value, result map[string]any, opts RowOptions) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" || opts.OmitFields[field.Name] {
			continue
		}

		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			appendStructFields(value, result, opts)
			continue
		}

		key := toSnakeCase(field.Name)
		if override, ok := opts.KeyOverrides[field.Name]; ok {
			key = override
		}
		result[key] = normalizeValue(value, opts)
	}
}

var timeType = reflect.TypeOf(time.Time{})

func normalizeValue(value reflect.Value, opts RowOptions) any {
	if !value.IsValid() {
		return nil
	}

	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	if value.Type() == timeType {
		ts := value.Interface().(time.Time)
		if ts.IsZero() {
			return nil
		}
		return ts.UTC().Format(time.RFC3339)
	}

	if value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.String {
		if !opts.JoinStringSlices {
			return value.Interface()
		}
		if value.Len() == 0 {
			return nil
		}
		items := make([]string, value.Len())
		for i := 0; i < value.Len(); i++ {
			items[i] = value.Index(i).String()
		}
		return strings.Join(items, ",")
	}

	// Named string and int types are unwrapped so the SQL driver accepts them.
	switch value.Kind() {
	case reflect.String:
		return value.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int()
	case reflect.Bool:
		return value.Bool()
	case reflect.Float32, reflect.Float64:
		return value.Float()
	}
	return value.Interface()
}

func toSnakeCase(input string) string {
	runes := []rune(input)
	var builder strings.Builder
	builder.Grow(len(runes) + 4)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			builder.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				builder.WriteRune('_')
			case unicode.IsUpper(prev) && nextLower:
				// Acronym followed by a word: "DOIValue" -> "doi_value".
				builder.WriteRune('_')
			}
		}
		builder.WriteRune(unicode.ToLower(r))
	}
	return builder.String()
}
